package classfile

import (
	"fmt"
	"math"

	"github.com/classflow/classflow/core/opcodes"
)

// MaxCodeLength is the largest code array a method may have.
const MaxCodeLength = 65535

// Code is the code attribute of a method. It owns the instruction sequence
// and every table that refers into it; all such references are sequence
// indices.
type Code struct {
	attrName
	MaxLocals  uint16
	Handlers   []*ExceptionHandler
	Attributes []Attribute

	pool     *ConstantPool
	maxStack uint16

	insts    []*Instruction
	offsets  []int   // byte offset per instruction, code length last
	byOffset []int32 // byte offset to sequence index, -1 inside an instruction

	// incoming branch index in CSR form: the branches targeting i are
	// inEdges[inStart[i]:inStart[i+1]].
	inStart []int32
	inEdges []int32
}

// NewCode builds a code attribute from insts, whose branch Targets must
// already be sequence indices.
func NewCode(pool *ConstantPool, maxStack, maxLocals uint16, insts []*Instruction) (*Code, error) {
	name, err := pool.AddUTF8Info(AttrCode)
	if err != nil {
		return nil, err
	}
	c := &Code{attrName: attrName{name}, pool: pool, maxStack: maxStack, MaxLocals: maxLocals}
	if err := c.install(insts, true); err != nil {
		return nil, err
	}
	return c, nil
}

func parseCode(name *UTF8Info, r *reader, ctx *attrContext) (*Code, error) {
	c := &Code{attrName: attrName{name}, pool: ctx.pool}
	c.maxStack = r.u2()
	c.MaxLocals = r.u2()
	at := r.offset()
	length := int64(r.u4())
	if r.err != nil {
		return nil, r.err
	}
	if length > MaxCodeLength {
		return nil, &SpecError{Class: ctx.class, Method: ctx.method, Err: ErrCodeTooLong}
	}
	if length == 0 {
		return nil, formatErrorf(at, "empty code array")
	}
	codeBase := r.offset()
	bytecode := r.bytes(int(length))
	if r.err != nil {
		return nil, r.err
	}
	insts, err := decodeInstructions(bytecode, ctx.pool, codeBase)
	if err != nil {
		return nil, err
	}
	if err := c.install(insts, false); err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Offset += codeBase
		}
		return nil, err
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		at := r.offset()
		startPC, endPC, handlerPC := int(r.u2()), int(r.u2()), int(r.u2())
		catch := poolRef[*ClassInfo](r, ctx.pool, true)
		if r.err != nil {
			break
		}
		h := &ExceptionHandler{CatchType: catch}
		var ok1, ok2, ok3 bool
		h.Start, ok1 = c.indexAt(startPC)
		h.End, ok2 = c.indexAt(endPC)
		h.Handler, ok3 = c.indexAt(handlerPC)
		if !ok1 || !ok2 || !ok3 || h.Start >= h.End || h.Handler >= len(c.insts) {
			return nil, formatErrorf(at, "invalid exception handler [%d, %d) -> %d", startPC, endPC, handlerPC)
		}
		c.Handlers = append(c.Handlers, h)
	}
	if r.err != nil {
		return nil, r.err
	}
	nested := &attrContext{pool: ctx.pool, class: ctx.class, method: ctx.method, code: c}
	attrs, err := readAttributes(r, nested)
	if err != nil {
		return nil, err
	}
	c.Attributes = attrs
	return c, nil
}

// Len returns the number of instructions.
func (c *Code) Len() int { return len(c.insts) }

// Instruction returns the instruction at sequence index i.
func (c *Code) Instruction(i int) *Instruction { return c.insts[i] }

// Instructions returns a copy of the instruction sequence.
func (c *Code) Instructions() []*Instruction {
	return append([]*Instruction(nil), c.insts...)
}

// CodeLength returns the code array length in bytes.
func (c *Code) CodeLength() int { return c.offsets[len(c.insts)] }

func (c *Code) MaxStack() uint16 { return c.maxStack }

func (c *Code) SetMaxStack(v uint16) { c.maxStack = v }

// Pool returns the constant pool the instructions refer to.
func (c *Code) Pool() *ConstantPool { return c.pool }

// InstructionAt returns the sequence index of the instruction starting at
// byte offset, or -1.
func (c *Code) InstructionAt(offset int) int {
	if i, ok := c.indexAt(offset); ok && i < len(c.insts) {
		return i
	}
	return -1
}

// indexAt maps a byte offset to a sequence index. The code length maps to
// Len() so exclusive range ends can be converted.
func (c *Code) indexAt(offset int) (int, bool) {
	if offset < 0 || offset >= len(c.byOffset) {
		return 0, false
	}
	i := c.byOffset[offset]
	return int(i), i >= 0
}

func (c *Code) offsetOf(i int) int { return c.offsets[i] }

// Bytecode returns the encoded code array.
func (c *Code) Bytecode() []byte {
	w := newWriter(c.CodeLength())
	encodeInstructions(w, c.insts, c.pool)
	return w.buf
}

// Length returns the attribute payload length.
func (c *Code) Length() int {
	return 2 + 2 + 4 + c.CodeLength() + 2 + 8*len(c.Handlers) + attributesLen(c.Attributes)
}

func (c *Code) write(w *writer, ctx *attrContext) {
	stack := int(c.maxStack)
	if ctx != nil {
		stack += ctx.stackMargin
	}
	if stack > math.MaxUint16 {
		stack = math.MaxUint16
	}
	w.u2(uint16(stack))
	w.u2(c.MaxLocals)
	w.u4(uint32(c.CodeLength()))
	encodeInstructions(w, c.insts, c.pool)
	w.u2(uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		w.u2(uint16(c.offsets[h.Start]))
		w.u2(uint16(c.offsets[h.End]))
		w.u2(uint16(c.offsets[h.Handler]))
		w.u2(optionalIndex(c.pool, h.CatchType))
	}
	nested := &attrContext{pool: c.pool, code: c}
	if ctx != nil {
		nested.stackMargin = ctx.stackMargin
	}
	writeAttributes(w, c.Attributes, nested)
}

// Attribute returns the first nested attribute called name, or nil.
func (c *Code) Attribute(name string) Attribute {
	for _, a := range c.Attributes {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// LineNumberOf returns the source line of the instruction at index i, if the
// code carries a line number table.
func (c *Code) LineNumberOf(i int) (int, bool) {
	best, line := -1, 0
	for _, a := range c.Attributes {
		lt, ok := a.(*LineNumberTableAttribute)
		if !ok {
			continue
		}
		for _, l := range lt.Lines {
			if l.Start <= i && l.Start > best {
				best, line = l.Start, int(l.Line)
			}
		}
	}
	return line, best >= 0
}

// SetInstructions replaces the instruction sequence. Branch Targets of insts
// are authoritative; offsets, switch padding and raw jumps are recomputed.
// The replacement is all-or-nothing: on error the previous sequence and
// every derived table are restored.
func (c *Code) SetInstructions(insts []*Instruction) error {
	saved := snapshot(c.insts)
	if err := c.install(insts, true); err != nil {
		saved.restore()
		if rerr := c.install(saved.insts, false); rerr != nil {
			panic(fmt.Sprintf("classfile: restoring instructions: %v", rerr))
		}
		return err
	}
	return nil
}

type instSnapshot struct {
	insts []*Instruction
	state []Instruction
}

func snapshot(insts []*Instruction) *instSnapshot {
	s := &instSnapshot{insts: insts, state: make([]Instruction, len(insts))}
	for i, ins := range insts {
		s.state[i] = *ins
		if ins.Switch != nil {
			sw := *ins.Switch
			sw.Keys = append([]int32(nil), sw.Keys...)
			sw.Targets = append([]int(nil), sw.Targets...)
			sw.jumps = append([]int32(nil), sw.jumps...)
			s.state[i].Switch = &sw
		}
	}
	return s
}

func (s *instSnapshot) restore() {
	for i, ins := range s.insts {
		*ins = s.state[i]
	}
}

// install lays out insts and rebuilds every derived table. With fromTargets
// the raw jumps are computed from Targets; otherwise Targets are resolved
// from the raw jumps of freshly decoded instructions.
func (c *Code) install(insts []*Instruction, fromTargets bool) error {
	n := len(insts)
	offsets := make([]int, n+1)
	off := 0
	for i, ins := range insts {
		ins.index = i
		if fromTargets {
			if err := c.normalize(ins); err != nil {
				return err
			}
		}
		ins.offset = off
		offsets[i] = off
		off += ins.sizeAt(off)
	}
	offsets[n] = off
	if off > MaxCodeLength {
		return fmt.Errorf("%w: %d bytes", ErrCodeTooLong, off)
	}
	byOffset := make([]int32, off+1)
	for i := range byOffset {
		byOffset[i] = -1
	}
	for i, o := range offsets {
		byOffset[o] = int32(i)
	}

	incoming := make(map[int32][]int32, n/10+1)
	link := func(from, to int) {
		edges := incoming[int32(to)]
		if len(edges) == 0 || edges[len(edges)-1] != int32(from) {
			incoming[int32(to)] = append(edges, int32(from))
		}
	}
	resolve := func(ins *Instruction, jump int32) (int, error) {
		to := ins.offset + int(jump)
		if to < 0 || to >= off || byOffset[to] < 0 {
			return -1, formatErrorf(ins.offset, "%v jumps to %d, not an instruction", ins.Op, to)
		}
		return int(byOffset[to]), nil
	}
	encode := func(ins *Instruction, target int) (int32, error) {
		if target < 0 || target >= n {
			return 0, fmt.Errorf("%w: %v at %d targets %d of %d", ErrBranchOutOfRange, ins.Op, ins.index, target, n)
		}
		jump := offsets[target] - ins.offset
		if ins.Info().Format == opcodes.FormatBranch && (jump < math.MinInt16 || jump > math.MaxInt16) {
			return 0, fmt.Errorf("%w: %v at %d jumps %d bytes", ErrBranchOutOfRange, ins.Op, ins.index, jump)
		}
		return int32(jump), nil
	}

	for i, ins := range insts {
		if !ins.Op.IsBranch() {
			continue
		}
		var err error
		if fromTargets {
			ins.jump, err = encode(ins, ins.Target)
		} else {
			ins.Target, err = resolve(ins, ins.jump)
		}
		if err != nil {
			return err
		}
		link(i, ins.Target)
		if sw := ins.Switch; sw != nil {
			for k := range sw.Targets {
				if fromTargets {
					sw.jumps[k], err = encode(ins, sw.Targets[k])
				} else {
					sw.Targets[k], err = resolve(ins, sw.jumps[k])
				}
				if err != nil {
					return err
				}
				link(i, sw.Targets[k])
			}
		}
	}
	if fromTargets {
		if err := c.checkTables(n); err != nil {
			return err
		}
	}

	inStart := make([]int32, n+1)
	for to, edges := range incoming {
		inStart[to+1] = int32(len(edges))
	}
	for i := 1; i <= n; i++ {
		inStart[i] += inStart[i-1]
	}
	inEdges := make([]int32, inStart[n])
	for to, edges := range incoming {
		copy(inEdges[inStart[to]:], edges)
	}

	c.insts, c.offsets, c.byOffset = insts, offsets, byOffset
	c.inStart, c.inEdges = inStart, inEdges
	return nil
}

// normalize fills derived fields of an instruction built by the caller and
// widens encodings whose operands no longer fit.
func (c *Code) normalize(ins *Instruction) error {
	info, ok := opcodes.Lookup(ins.Op)
	if !ok || ins.Op == opcodes.WIDE {
		panic(fmt.Sprintf("classfile: unknown opcode 0x%02x", byte(ins.Op)))
	}
	switch info.Kind {
	case opcodes.KindLoad, opcodes.KindStore, opcodes.KindRet:
		if info.Format == opcodes.FormatLocal && ins.Local > math.MaxUint8 {
			ins.Wide = true
		}
	case opcodes.KindIinc:
		if ins.Local > math.MaxUint8 || ins.Value < math.MinInt8 || ins.Value > math.MaxInt8 {
			ins.Wide = true
		}
	case opcodes.KindConst:
		if ins.Op == opcodes.LDC && c.pool.IndexOf(ins.Entry) > math.MaxUint8 {
			ins.Op = opcodes.LDC_W
		}
	case opcodes.KindSwitch:
		if ins.Switch == nil {
			return fmt.Errorf("%w: %v at %d has no cases", ErrBranchOutOfRange, ins.Op, ins.index)
		}
		sw := ins.Switch
		if ins.Op == opcodes.TABLESWITCH {
			sw.High = sw.Low + int32(len(sw.Targets)) - 1
		} else if len(sw.Keys) != len(sw.Targets) {
			return fmt.Errorf("%w: lookupswitch at %d has %d keys and %d targets", ErrBranchOutOfRange, ins.index, len(sw.Keys), len(sw.Targets))
		}
		if len(sw.jumps) != len(sw.Targets) {
			sw.jumps = make([]int32, len(sw.Targets))
		}
	}
	switch info.Format {
	case opcodes.FormatPoolByte, opcodes.FormatPool, opcodes.FormatInterface, opcodes.FormatDynamic, opcodes.FormatMultiArray:
		if ins.Entry == nil || c.pool.IndexOf(ins.Entry) == 0 {
			return fmt.Errorf("%v at %d: operand is not in the constant pool", ins.Op, ins.index)
		}
	}
	return ins.derive()
}

func (c *Code) checkTables(n int) error {
	for _, h := range c.Handlers {
		if h.Start < 0 || h.Start >= h.End || h.End > n || h.Handler < 0 || h.Handler >= n {
			return fmt.Errorf("%w: exception handler [%d, %d) -> %d with %d instructions", ErrBranchOutOfRange, h.Start, h.End, h.Handler, n)
		}
	}
	for _, a := range c.Attributes {
		switch a := a.(type) {
		case *LineNumberTableAttribute:
			for _, l := range a.Lines {
				if l.Start < 0 || l.Start >= n {
					return fmt.Errorf("%w: line number entry at %d with %d instructions", ErrBranchOutOfRange, l.Start, n)
				}
			}
		case *LocalVariableTableAttribute:
			for _, v := range a.Variables {
				if v.Start < 0 || v.Start > v.End || v.End > n {
					return fmt.Errorf("%w: local variable range [%d, %d) with %d instructions", ErrBranchOutOfRange, v.Start, v.End, n)
				}
			}
		case *IOInstructionsAttribute:
			for _, i := range a.Instructions {
				if i < 0 || i >= n {
					return fmt.Errorf("%w: IO instruction %d with %d instructions", ErrBranchOutOfRange, i, n)
				}
			}
		}
	}
	return nil
}
