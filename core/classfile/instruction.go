package classfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/classflow/classflow/core/opcodes"
)

// Instruction is one decoded opcode with its operands. Index and Offset are
// assigned by the owning Code; Target holds the resolved sequence index of a
// branch target, or the default target of a switch.
type Instruction struct {
	Op    opcodes.Opcode
	Wide  bool
	Local int

	// Value is the immediate operand: the bipush/sipush constant, the iinc
	// delta, the newarray element type, the multianewarray dimension count
	// or the invokeinterface argument count.
	Value int32

	Entry  Entry
	Target int
	Switch *Switch

	index  int
	offset int
	jump   int32

	pops     int
	pushes   int
	produces byte
}

// Switch carries the cases of a tableswitch or lookupswitch. The default
// target lives in Instruction.Target.
type Switch struct {
	Low, High int32   // tableswitch bounds
	Keys      []int32 // lookupswitch keys, ascending
	Targets   []int

	jumps []int32
}

// NewInstruction returns an instruction without operands, such as iadd.
func NewInstruction(op opcodes.Opcode) *Instruction {
	return &Instruction{Op: op, Target: -1}
}

// NewBranch returns a branch to the instruction at sequence index target.
func NewBranch(op opcodes.Opcode, target int) *Instruction {
	return &Instruction{Op: op, Target: target}
}

// NewLocal returns a load, store or ret on local slot.
func NewLocal(op opcodes.Opcode, slot int) *Instruction {
	return &Instruction{Op: op, Local: slot, Target: -1}
}

// NewPush returns a bipush or sipush of v.
func NewPush(op opcodes.Opcode, v int32) *Instruction {
	return &Instruction{Op: op, Value: v, Target: -1}
}

// NewRef returns an instruction whose operand is a constant pool entry.
func NewRef(op opcodes.Opcode, e Entry) *Instruction {
	ins := &Instruction{Op: op, Entry: e, Target: -1}
	if op == opcodes.INVOKEINTERFACE {
		if ref, ok := e.(*MemberRefInfo); ok {
			if md, err := ParseMethodDescriptor(ref.Descriptor()); err == nil {
				ins.Value = int32(md.ArgumentSlots() + 1)
			}
		}
	}
	return ins
}

// Index returns the sequence index within the method.
func (ins *Instruction) Index() int { return ins.index }

// Offset returns the byte offset within the code array.
func (ins *Instruction) Offset() int { return ins.offset }

// Jump returns the raw relative branch offset as encoded.
func (ins *Instruction) Jump() int32 { return ins.jump }

func (ins *Instruction) Info() opcodes.Info {
	info, _ := opcodes.Lookup(ins.Op)
	return info
}

// Pops returns the number of values the instruction consumes. For stack
// shufflers the table slot count is returned.
func (ins *Instruction) Pops() int { return ins.pops }

// Pushes returns the number of values the instruction produces.
func (ins *Instruction) Pushes() int { return ins.pushes }

// Peeks returns the number of stack slots a shuffler inspects.
func (ins *Instruction) Peeks() int { return ins.Info().Peeks }

// Produces returns the type code of the produced value, or TypeNone.
func (ins *Instruction) Produces() byte { return ins.produces }

// Category returns the stack width of the produced value.
func (ins *Instruction) Category() int { return opcodes.Category(ins.produces) }

// IsBranch reports whether the instruction carries branch targets.
func (ins *Instruction) IsBranch() bool { return ins.Op.IsBranch() }

// Targets returns every branch target, the default first for switches.
func (ins *Instruction) Targets() []int {
	if !ins.Op.IsBranch() {
		return nil
	}
	if ins.Switch == nil {
		return []int{ins.Target}
	}
	out := make([]int, 0, len(ins.Switch.Targets)+1)
	out = append(out, ins.Target)
	return append(out, ins.Switch.Targets...)
}

// Member returns the referenced field or method, or nil.
func (ins *Instruction) Member() *MemberRefInfo {
	ref, _ := ins.Entry.(*MemberRefInfo)
	return ref
}

// derive computes the operand-dependent stack counts.
func (ins *Instruction) derive() error {
	info, ok := opcodes.Lookup(ins.Op)
	if !ok {
		panic(fmt.Sprintf("classfile: unknown opcode 0x%02x", byte(ins.Op)))
	}
	ins.pops, ins.pushes, ins.produces = info.Pops, info.Pushes, info.Produces

	switch info.Kind {
	case opcodes.KindInvoke:
		var desc string
		switch e := ins.Entry.(type) {
		case *MemberRefInfo:
			desc = e.Descriptor()
		case *InvokeDynamicInfo:
			desc = e.Descriptor()
		default:
			return fmt.Errorf("%v operand is %T", ins.Op, ins.Entry)
		}
		md, err := ParseMethodDescriptor(desc)
		if err != nil {
			return err
		}
		ins.pops = len(md.Args)
		if ins.Op != opcodes.INVOKESTATIC && ins.Op != opcodes.INVOKEDYNAMIC {
			ins.pops++
		}
		ins.produces = TypeCode(md.Return)
		ins.pushes = 0
		if ins.produces != opcodes.TypeNone {
			ins.pushes = 1
		}
	case opcodes.KindField:
		ref, ok := ins.Entry.(*MemberRefInfo)
		if !ok {
			return fmt.Errorf("%v operand is %T", ins.Op, ins.Entry)
		}
		if info.Produces == opcodes.TypeOperand {
			ins.produces = TypeCode(ref.Descriptor())
		}
	case opcodes.KindConst:
		if info.Produces == opcodes.TypeOperand {
			switch ins.Entry.(type) {
			case *IntegerInfo:
				ins.produces = opcodes.TypeInt
			case *FloatInfo:
				ins.produces = opcodes.TypeFloat
			case *LongInfo:
				ins.produces = opcodes.TypeLong
			case *DoubleInfo:
				ins.produces = opcodes.TypeDouble
			case *StringInfo, *ClassInfo, *MethodTypeInfo, *MethodHandleInfo:
				ins.produces = opcodes.TypeRef
			default:
				return fmt.Errorf("%v operand is %T", ins.Op, ins.Entry)
			}
		}
	case opcodes.KindTypeRef:
		if _, ok := ins.Entry.(*ClassInfo); !ok {
			return fmt.Errorf("%v operand is %T", ins.Op, ins.Entry)
		}
		if ins.Op == opcodes.MULTIANEWARRAY {
			ins.pops = int(ins.Value)
		}
	}
	return nil
}

func (ins *Instruction) String() string {
	var sb strings.Builder
	if ins.Wide {
		sb.WriteString("wide ")
	}
	sb.WriteString(ins.Op.String())
	info := ins.Info()
	switch info.Format {
	case opcodes.FormatLocal:
		sb.WriteString(" " + strconv.Itoa(ins.Local))
	case opcodes.FormatIinc:
		sb.WriteString(" " + strconv.Itoa(ins.Local) + " " + strconv.Itoa(int(ins.Value)))
	case opcodes.FormatByte, opcodes.FormatShort:
		sb.WriteString(" " + strconv.Itoa(int(ins.Value)))
	case opcodes.FormatPoolByte, opcodes.FormatPool, opcodes.FormatInterface, opcodes.FormatDynamic:
		if ins.Entry != nil {
			sb.WriteString(" " + ins.Entry.String())
		}
	case opcodes.FormatMultiArray:
		if ins.Entry != nil {
			sb.WriteString(" " + ins.Entry.String())
		}
		sb.WriteString(" " + strconv.Itoa(int(ins.Value)))
	case opcodes.FormatBranch, opcodes.FormatBranchWide:
		sb.WriteString(" -> " + strconv.Itoa(ins.Target))
	case opcodes.FormatTableSwitch, opcodes.FormatLookupSwitch:
		sb.WriteString(" {")
		if ins.Switch != nil {
			for i, t := range ins.Switch.Targets {
				key := ins.Switch.Low + int32(i)
				if ins.Op == opcodes.LOOKUPSWITCH {
					key = ins.Switch.Keys[i]
				}
				fmt.Fprintf(&sb, " %d -> %d;", key, t)
			}
		}
		fmt.Fprintf(&sb, " default -> %d }", ins.Target)
	}
	return sb.String()
}
