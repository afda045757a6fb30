package classfile

import (
	"fmt"

	"github.com/classflow/classflow/core/opcodes"
)

// operandCodec decodes, encodes and sizes the operands of one opcode format.
type operandCodec struct {
	decode func(r *reader, ins *Instruction, p *ConstantPool)
	encode func(w *writer, ins *Instruction, p *ConstantPool)
	size   func(ins *Instruction, offset int) int
}

var codecs = [...]operandCodec{
	opcodes.FormatNone:         {decodeNone, encodeNone, fixedSize(0)},
	opcodes.FormatLocal:        {decodeLocal, encodeLocal, localSize},
	opcodes.FormatByte:         {decodeByte, encodeByte, fixedSize(1)},
	opcodes.FormatShort:        {decodeShort, encodeShort, fixedSize(2)},
	opcodes.FormatPoolByte:     {decodePoolByte, encodePoolByte, fixedSize(1)},
	opcodes.FormatPool:         {decodePool, encodePool, fixedSize(2)},
	opcodes.FormatBranch:       {decodeBranch, encodeBranch, fixedSize(2)},
	opcodes.FormatBranchWide:   {decodeBranchWide, encodeBranchWide, fixedSize(4)},
	opcodes.FormatIinc:         {decodeIinc, encodeIinc, iincSize},
	opcodes.FormatInterface:    {decodeInterface, encodeInterface, fixedSize(4)},
	opcodes.FormatDynamic:      {decodeDynamic, encodeDynamic, fixedSize(4)},
	opcodes.FormatMultiArray:   {decodeMultiArray, encodeMultiArray, fixedSize(3)},
	opcodes.FormatTableSwitch:  {decodeTableSwitch, encodeTableSwitch, tableSwitchSize},
	opcodes.FormatLookupSwitch: {decodeLookupSwitch, encodeLookupSwitch, lookupSwitchSize},
}

func codecFor(op opcodes.Opcode) operandCodec {
	info, ok := opcodes.Lookup(op)
	if !ok || info.Format == opcodes.FormatWide {
		panic(fmt.Sprintf("classfile: unknown opcode 0x%02x", byte(op)))
	}
	return codecs[info.Format]
}

func fixedSize(n int) func(*Instruction, int) int {
	return func(*Instruction, int) int { return n }
}

// switchPadding returns the number of zero bytes after a switch opcode at
// offset so that the default offset is 4-byte aligned.
func switchPadding(offset int) int {
	return 3 - offset&3
}

// Size returns the encoded length in bytes at the instruction's current
// offset, opcode and wide prefix included.
func (ins *Instruction) Size() int {
	return ins.sizeAt(ins.offset)
}

func (ins *Instruction) sizeAt(offset int) int {
	n := 1 + codecFor(ins.Op).size(ins, offset)
	if ins.Wide {
		n++
	}
	return n
}

func decodeNone(r *reader, ins *Instruction, p *ConstantPool) {
	if slot, ok := ins.Op.ImplicitLocal(); ok {
		ins.Local = slot
	}
}

func encodeNone(w *writer, ins *Instruction, p *ConstantPool) {}

func decodeLocal(r *reader, ins *Instruction, p *ConstantPool) {
	if ins.Wide {
		ins.Local = int(r.u2())
	} else {
		ins.Local = int(r.u1())
	}
}

func encodeLocal(w *writer, ins *Instruction, p *ConstantPool) {
	if ins.Wide {
		w.u2(uint16(ins.Local))
	} else {
		w.u1(uint8(ins.Local))
	}
}

func localSize(ins *Instruction, offset int) int {
	if ins.Wide {
		return 2
	}
	return 1
}

func decodeByte(r *reader, ins *Instruction, p *ConstantPool) {
	if ins.Op == opcodes.NEWARRAY {
		ins.Value = int32(r.u1())
	} else {
		ins.Value = int32(r.s1())
	}
}

func encodeByte(w *writer, ins *Instruction, p *ConstantPool) { w.u1(uint8(ins.Value)) }

func decodeShort(r *reader, ins *Instruction, p *ConstantPool) { ins.Value = int32(r.s2()) }

func encodeShort(w *writer, ins *Instruction, p *ConstantPool) { w.s2(int16(ins.Value)) }

func decodePoolByte(r *reader, ins *Instruction, p *ConstantPool) {
	ins.Entry = poolOperand(r, p, int(r.u1()))
}

func encodePoolByte(w *writer, ins *Instruction, p *ConstantPool) { w.u1(uint8(p.IndexOf(ins.Entry))) }

func decodePool(r *reader, ins *Instruction, p *ConstantPool) {
	ins.Entry = poolOperand(r, p, int(r.u2()))
}

func encodePool(w *writer, ins *Instruction, p *ConstantPool) { w.u2(p.indexOf(ins.Entry)) }

func poolOperand(r *reader, p *ConstantPool, index int) Entry {
	e := p.Get(index)
	if (e == nil || e.Tag() == TagPadding) && r.err == nil {
		r.err = formatErrorf(r.offset(), "invalid constant pool operand #%d", index)
	}
	return e
}

func decodeBranch(r *reader, ins *Instruction, p *ConstantPool) { ins.jump = int32(r.s2()) }

func encodeBranch(w *writer, ins *Instruction, p *ConstantPool) { w.s2(int16(ins.jump)) }

func decodeBranchWide(r *reader, ins *Instruction, p *ConstantPool) { ins.jump = r.s4() }

func encodeBranchWide(w *writer, ins *Instruction, p *ConstantPool) { w.s4(ins.jump) }

func decodeIinc(r *reader, ins *Instruction, p *ConstantPool) {
	if ins.Wide {
		ins.Local = int(r.u2())
		ins.Value = int32(r.s2())
	} else {
		ins.Local = int(r.u1())
		ins.Value = int32(r.s1())
	}
}

func encodeIinc(w *writer, ins *Instruction, p *ConstantPool) {
	if ins.Wide {
		w.u2(uint16(ins.Local))
		w.s2(int16(ins.Value))
	} else {
		w.u1(uint8(ins.Local))
		w.s1(int8(ins.Value))
	}
}

func iincSize(ins *Instruction, offset int) int {
	if ins.Wide {
		return 4
	}
	return 2
}

func decodeInterface(r *reader, ins *Instruction, p *ConstantPool) {
	ins.Entry = poolOperand(r, p, int(r.u2()))
	ins.Value = int32(r.u1())
	r.skip(1)
}

func encodeInterface(w *writer, ins *Instruction, p *ConstantPool) {
	w.u2(p.indexOf(ins.Entry))
	w.u1(uint8(ins.Value))
	w.u1(0)
}

func decodeDynamic(r *reader, ins *Instruction, p *ConstantPool) {
	ins.Entry = poolOperand(r, p, int(r.u2()))
	r.skip(2)
}

func encodeDynamic(w *writer, ins *Instruction, p *ConstantPool) {
	w.u2(p.indexOf(ins.Entry))
	w.u2(0)
}

func decodeMultiArray(r *reader, ins *Instruction, p *ConstantPool) {
	ins.Entry = poolOperand(r, p, int(r.u2()))
	ins.Value = int32(r.u1())
}

func encodeMultiArray(w *writer, ins *Instruction, p *ConstantPool) {
	w.u2(p.indexOf(ins.Entry))
	w.u1(uint8(ins.Value))
}

func decodeTableSwitch(r *reader, ins *Instruction, p *ConstantPool) {
	r.skip(switchPadding(ins.offset))
	ins.jump = r.s4()
	low, high := r.s4(), r.s4()
	if r.err != nil {
		return
	}
	n := int64(high) - int64(low) + 1
	if n < 0 || n*4 > int64(r.remaining()) {
		r.fail("tableswitch range [%d, %d] exceeds code", low, high)
		return
	}
	sw := &Switch{Low: low, High: high, jumps: make([]int32, n), Targets: make([]int, n)}
	for i := range sw.jumps {
		sw.jumps[i] = r.s4()
		sw.Targets[i] = -1
	}
	ins.Switch = sw
}

func encodeTableSwitch(w *writer, ins *Instruction, p *ConstantPool) {
	w.zeros(switchPadding(ins.offset))
	w.s4(ins.jump)
	w.s4(ins.Switch.Low)
	w.s4(ins.Switch.High)
	for _, j := range ins.Switch.jumps {
		w.s4(j)
	}
}

func tableSwitchSize(ins *Instruction, offset int) int {
	return switchPadding(offset) + 12 + 4*len(ins.Switch.Targets)
}

func decodeLookupSwitch(r *reader, ins *Instruction, p *ConstantPool) {
	r.skip(switchPadding(ins.offset))
	ins.jump = r.s4()
	npairs := r.s4()
	if r.err != nil {
		return
	}
	if npairs < 0 || int64(npairs)*8 > int64(r.remaining()) {
		r.fail("lookupswitch pair count %d exceeds code", npairs)
		return
	}
	sw := &Switch{Keys: make([]int32, npairs), jumps: make([]int32, npairs), Targets: make([]int, npairs)}
	for i := range sw.Keys {
		sw.Keys[i] = r.s4()
		sw.jumps[i] = r.s4()
		sw.Targets[i] = -1
	}
	ins.Switch = sw
}

func encodeLookupSwitch(w *writer, ins *Instruction, p *ConstantPool) {
	w.zeros(switchPadding(ins.offset))
	w.s4(ins.jump)
	w.s4(int32(len(ins.Switch.Keys)))
	for i, k := range ins.Switch.Keys {
		w.s4(k)
		w.s4(ins.Switch.jumps[i])
	}
}

func lookupSwitchSize(ins *Instruction, offset int) int {
	return switchPadding(offset) + 8 + 8*len(ins.Switch.Keys)
}

// decodeInstructions decodes a code array in a single forward pass. Branch
// targets are left unresolved. base is the file offset of the code array and
// only used for error reporting.
func decodeInstructions(code []byte, p *ConstantPool, base int) ([]*Instruction, error) {
	r := newSubReader(code, base)
	insts := make([]*Instruction, 0, len(code)/2)
	for r.remaining() > 0 {
		ins := &Instruction{offset: r.pos, index: len(insts), Target: -1}
		ins.Op = opcodes.Opcode(r.u1())
		if ins.Op == opcodes.WIDE {
			ins.Wide = true
			ins.Op = opcodes.Opcode(r.u1())
		}
		if r.err != nil {
			break
		}
		info, ok := opcodes.Lookup(ins.Op)
		if !ok {
			panic(fmt.Sprintf("classfile: unknown opcode 0x%02x at offset %d", byte(ins.Op), base+ins.offset))
		}
		if ins.Wide {
			switch info.Kind {
			case opcodes.KindLoad, opcodes.KindStore, opcodes.KindIinc, opcodes.KindRet:
			default:
				return nil, formatErrorf(base+ins.offset, "wide prefix on %v", ins.Op)
			}
			if info.Format == opcodes.FormatNone {
				return nil, formatErrorf(base+ins.offset, "wide prefix on %v", ins.Op)
			}
		}
		codecFor(ins.Op).decode(r, ins, p)
		if r.err != nil {
			break
		}
		if err := ins.derive(); err != nil {
			return nil, formatErrorf(base+ins.offset, "%v", err)
		}
		insts = append(insts, ins)
	}
	if r.err != nil {
		return nil, r.err
	}
	return insts, nil
}

// encodeInstructions writes insts at their assigned offsets.
func encodeInstructions(w *writer, insts []*Instruction, p *ConstantPool) {
	for _, ins := range insts {
		if ins.Wide {
			w.u1(uint8(opcodes.WIDE))
		}
		w.u1(uint8(ins.Op))
		codecFor(ins.Op).encode(w, ins, p)
	}
}
