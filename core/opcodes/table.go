package opcodes

// Kind groups opcodes by the way they affect control flow and the operand
// stack.
type Kind uint8

const (
	KindPlain      Kind = iota // pops and pushes values, falls through
	KindConst                  // pushes a constant
	KindLoad                   // reads a local variable
	KindStore                  // writes a local variable
	KindIinc                   // increments a local variable in place
	KindIf                     // conditional branch
	KindGoto                   // unconditional branch
	KindSubroutine             // jsr, jsr_w
	KindRet                    // return from subroutine
	KindSwitch                 // tableswitch, lookupswitch
	KindReturn                 // method return
	KindThrow                  // athrow
	KindField                  // field access through a member reference
	KindInvoke                 // method invocation
	KindShuffle                // pop, dup and swap families
	KindTypeRef                // class operand: new, checkcast, instanceof, array creation
	KindWide                   // wide prefix
)

var kindNames = [...]string{
	KindPlain:      "plain",
	KindConst:      "const",
	KindLoad:       "load",
	KindStore:      "store",
	KindIinc:       "iinc",
	KindIf:         "if",
	KindGoto:       "goto",
	KindSubroutine: "subroutine",
	KindRet:        "ret",
	KindSwitch:     "switch",
	KindReturn:     "return",
	KindThrow:      "throw",
	KindField:      "field",
	KindInvoke:     "invoke",
	KindShuffle:    "shuffle",
	KindTypeRef:    "typeref",
	KindWide:       "wide",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Format describes the operand bytes that follow an opcode.
type Format uint8

const (
	FormatNone         Format = iota
	FormatLocal               // u1 local slot, u2 under wide
	FormatByte                // s1 immediate, or newarray element type
	FormatShort               // s2 immediate
	FormatPoolByte            // u1 constant pool index
	FormatPool                // u2 constant pool index
	FormatBranch              // s2 relative offset
	FormatBranchWide          // s4 relative offset
	FormatIinc                // u1 slot + s1 delta, u2 + s2 under wide
	FormatInterface           // u2 pool index, u1 count, u1 zero
	FormatDynamic             // u2 pool index, u2 zero
	FormatMultiArray          // u2 pool index, u1 dimensions
	FormatTableSwitch         // padded default, low, high, offsets
	FormatLookupSwitch        // padded default, npairs, key/offset pairs
	FormatWide                // prefix of the next instruction
)

// Size is the number of operand bytes for fixed-size formats and Variable
// otherwise.
func (f Format) Size() int {
	switch f {
	case FormatNone:
		return 0
	case FormatLocal, FormatByte, FormatPoolByte:
		return 1
	case FormatShort, FormatPool, FormatBranch, FormatIinc:
		return 2
	case FormatMultiArray:
		return 3
	case FormatBranchWide, FormatInterface, FormatDynamic:
		return 4
	}
	return Variable
}

// Variable marks a count that depends on the operand, such as the argument
// count of a method descriptor.
const Variable = -1

// Produced type codes.
const (
	TypeNone    byte = 0
	TypeInt     byte = 'I'
	TypeLong    byte = 'J'
	TypeFloat   byte = 'F'
	TypeDouble  byte = 'D'
	TypeRef     byte = 'A'
	TypeAddress byte = 'R' // jsr return address
	TypeOperand byte = '?' // derived from the constant pool operand
)

// Info is the static description of one opcode. For stack shufflers the
// counts are in stack slots: Pops slots removed, Peeks slots inspected and
// Pushes slots added.
type Info struct {
	Name     string
	Format   Format
	Pops     int
	Pushes   int
	Peeks    int
	Produces byte
	Kind     Kind
}

// Lookup returns the table entry for op. ok is false for bytes outside the
// instruction set.
func Lookup(op Opcode) (info Info, ok bool) {
	info = table[op]
	return info, info.Name != ""
}

// Operands returns the fixed operand byte count of op.
func (op Opcode) Operands() int {
	return table[op].Format.Size()
}

// Category is 2 for the wide primitive types long and double, 1 otherwise.
func Category(t byte) int {
	if t == TypeLong || t == TypeDouble {
		return 2
	}
	return 1
}

var table = [256]Info{
	NOP:         {"nop", FormatNone, 0, 0, 0, TypeNone, KindPlain},
	ACONST_NULL: {"aconst_null", FormatNone, 0, 1, 0, TypeRef, KindConst},
	ICONST_M1:   {"iconst_m1", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_0:    {"iconst_0", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_1:    {"iconst_1", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_2:    {"iconst_2", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_3:    {"iconst_3", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_4:    {"iconst_4", FormatNone, 0, 1, 0, TypeInt, KindConst},
	ICONST_5:    {"iconst_5", FormatNone, 0, 1, 0, TypeInt, KindConst},
	LCONST_0:    {"lconst_0", FormatNone, 0, 1, 0, TypeLong, KindConst},
	LCONST_1:    {"lconst_1", FormatNone, 0, 1, 0, TypeLong, KindConst},
	FCONST_0:    {"fconst_0", FormatNone, 0, 1, 0, TypeFloat, KindConst},
	FCONST_1:    {"fconst_1", FormatNone, 0, 1, 0, TypeFloat, KindConst},
	FCONST_2:    {"fconst_2", FormatNone, 0, 1, 0, TypeFloat, KindConst},
	DCONST_0:    {"dconst_0", FormatNone, 0, 1, 0, TypeDouble, KindConst},
	DCONST_1:    {"dconst_1", FormatNone, 0, 1, 0, TypeDouble, KindConst},
	BIPUSH:      {"bipush", FormatByte, 0, 1, 0, TypeInt, KindConst},
	SIPUSH:      {"sipush", FormatShort, 0, 1, 0, TypeInt, KindConst},
	LDC:         {"ldc", FormatPoolByte, 0, 1, 0, TypeOperand, KindConst},
	LDC_W:       {"ldc_w", FormatPool, 0, 1, 0, TypeOperand, KindConst},
	LDC2_W:      {"ldc2_w", FormatPool, 0, 1, 0, TypeOperand, KindConst},

	ILOAD:   {"iload", FormatLocal, 0, 1, 0, TypeInt, KindLoad},
	LLOAD:   {"lload", FormatLocal, 0, 1, 0, TypeLong, KindLoad},
	FLOAD:   {"fload", FormatLocal, 0, 1, 0, TypeFloat, KindLoad},
	DLOAD:   {"dload", FormatLocal, 0, 1, 0, TypeDouble, KindLoad},
	ALOAD:   {"aload", FormatLocal, 0, 1, 0, TypeRef, KindLoad},
	ILOAD_0: {"iload_0", FormatNone, 0, 1, 0, TypeInt, KindLoad},
	ILOAD_1: {"iload_1", FormatNone, 0, 1, 0, TypeInt, KindLoad},
	ILOAD_2: {"iload_2", FormatNone, 0, 1, 0, TypeInt, KindLoad},
	ILOAD_3: {"iload_3", FormatNone, 0, 1, 0, TypeInt, KindLoad},
	LLOAD_0: {"lload_0", FormatNone, 0, 1, 0, TypeLong, KindLoad},
	LLOAD_1: {"lload_1", FormatNone, 0, 1, 0, TypeLong, KindLoad},
	LLOAD_2: {"lload_2", FormatNone, 0, 1, 0, TypeLong, KindLoad},
	LLOAD_3: {"lload_3", FormatNone, 0, 1, 0, TypeLong, KindLoad},
	FLOAD_0: {"fload_0", FormatNone, 0, 1, 0, TypeFloat, KindLoad},
	FLOAD_1: {"fload_1", FormatNone, 0, 1, 0, TypeFloat, KindLoad},
	FLOAD_2: {"fload_2", FormatNone, 0, 1, 0, TypeFloat, KindLoad},
	FLOAD_3: {"fload_3", FormatNone, 0, 1, 0, TypeFloat, KindLoad},
	DLOAD_0: {"dload_0", FormatNone, 0, 1, 0, TypeDouble, KindLoad},
	DLOAD_1: {"dload_1", FormatNone, 0, 1, 0, TypeDouble, KindLoad},
	DLOAD_2: {"dload_2", FormatNone, 0, 1, 0, TypeDouble, KindLoad},
	DLOAD_3: {"dload_3", FormatNone, 0, 1, 0, TypeDouble, KindLoad},
	ALOAD_0: {"aload_0", FormatNone, 0, 1, 0, TypeRef, KindLoad},
	ALOAD_1: {"aload_1", FormatNone, 0, 1, 0, TypeRef, KindLoad},
	ALOAD_2: {"aload_2", FormatNone, 0, 1, 0, TypeRef, KindLoad},
	ALOAD_3: {"aload_3", FormatNone, 0, 1, 0, TypeRef, KindLoad},
	IALOAD:  {"iaload", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LALOAD:  {"laload", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FALOAD:  {"faload", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DALOAD:  {"daload", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	AALOAD:  {"aaload", FormatNone, 2, 1, 0, TypeRef, KindPlain},
	BALOAD:  {"baload", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	CALOAD:  {"caload", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	SALOAD:  {"saload", FormatNone, 2, 1, 0, TypeInt, KindPlain},

	ISTORE:   {"istore", FormatLocal, 1, 0, 0, TypeNone, KindStore},
	LSTORE:   {"lstore", FormatLocal, 1, 0, 0, TypeNone, KindStore},
	FSTORE:   {"fstore", FormatLocal, 1, 0, 0, TypeNone, KindStore},
	DSTORE:   {"dstore", FormatLocal, 1, 0, 0, TypeNone, KindStore},
	ASTORE:   {"astore", FormatLocal, 1, 0, 0, TypeNone, KindStore},
	ISTORE_0: {"istore_0", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ISTORE_1: {"istore_1", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ISTORE_2: {"istore_2", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ISTORE_3: {"istore_3", FormatNone, 1, 0, 0, TypeNone, KindStore},
	LSTORE_0: {"lstore_0", FormatNone, 1, 0, 0, TypeNone, KindStore},
	LSTORE_1: {"lstore_1", FormatNone, 1, 0, 0, TypeNone, KindStore},
	LSTORE_2: {"lstore_2", FormatNone, 1, 0, 0, TypeNone, KindStore},
	LSTORE_3: {"lstore_3", FormatNone, 1, 0, 0, TypeNone, KindStore},
	FSTORE_0: {"fstore_0", FormatNone, 1, 0, 0, TypeNone, KindStore},
	FSTORE_1: {"fstore_1", FormatNone, 1, 0, 0, TypeNone, KindStore},
	FSTORE_2: {"fstore_2", FormatNone, 1, 0, 0, TypeNone, KindStore},
	FSTORE_3: {"fstore_3", FormatNone, 1, 0, 0, TypeNone, KindStore},
	DSTORE_0: {"dstore_0", FormatNone, 1, 0, 0, TypeNone, KindStore},
	DSTORE_1: {"dstore_1", FormatNone, 1, 0, 0, TypeNone, KindStore},
	DSTORE_2: {"dstore_2", FormatNone, 1, 0, 0, TypeNone, KindStore},
	DSTORE_3: {"dstore_3", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ASTORE_0: {"astore_0", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ASTORE_1: {"astore_1", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ASTORE_2: {"astore_2", FormatNone, 1, 0, 0, TypeNone, KindStore},
	ASTORE_3: {"astore_3", FormatNone, 1, 0, 0, TypeNone, KindStore},
	IASTORE:  {"iastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	LASTORE:  {"lastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	FASTORE:  {"fastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	DASTORE:  {"dastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	AASTORE:  {"aastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	BASTORE:  {"bastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	CASTORE:  {"castore", FormatNone, 3, 0, 0, TypeNone, KindPlain},
	SASTORE:  {"sastore", FormatNone, 3, 0, 0, TypeNone, KindPlain},

	POP:     {"pop", FormatNone, 1, 0, 0, TypeNone, KindShuffle},
	POP2:    {"pop2", FormatNone, 2, 0, 0, TypeNone, KindShuffle},
	DUP:     {"dup", FormatNone, 0, 1, 1, TypeNone, KindShuffle},
	DUP_X1:  {"dup_x1", FormatNone, 0, 1, 2, TypeNone, KindShuffle},
	DUP_X2:  {"dup_x2", FormatNone, 0, 1, 3, TypeNone, KindShuffle},
	DUP2:    {"dup2", FormatNone, 0, 2, 2, TypeNone, KindShuffle},
	DUP2_X1: {"dup2_x1", FormatNone, 0, 2, 3, TypeNone, KindShuffle},
	DUP2_X2: {"dup2_x2", FormatNone, 0, 2, 4, TypeNone, KindShuffle},
	SWAP:    {"swap", FormatNone, 0, 0, 2, TypeNone, KindShuffle},

	IADD:  {"iadd", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LADD:  {"ladd", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FADD:  {"fadd", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DADD:  {"dadd", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	ISUB:  {"isub", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LSUB:  {"lsub", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FSUB:  {"fsub", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DSUB:  {"dsub", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	IMUL:  {"imul", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LMUL:  {"lmul", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FMUL:  {"fmul", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DMUL:  {"dmul", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	IDIV:  {"idiv", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LDIV:  {"ldiv", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FDIV:  {"fdiv", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DDIV:  {"ddiv", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	IREM:  {"irem", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LREM:  {"lrem", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	FREM:  {"frem", FormatNone, 2, 1, 0, TypeFloat, KindPlain},
	DREM:  {"drem", FormatNone, 2, 1, 0, TypeDouble, KindPlain},
	INEG:  {"ineg", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	LNEG:  {"lneg", FormatNone, 1, 1, 0, TypeLong, KindPlain},
	FNEG:  {"fneg", FormatNone, 1, 1, 0, TypeFloat, KindPlain},
	DNEG:  {"dneg", FormatNone, 1, 1, 0, TypeDouble, KindPlain},
	ISHL:  {"ishl", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LSHL:  {"lshl", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	ISHR:  {"ishr", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LSHR:  {"lshr", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	IUSHR: {"iushr", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LUSHR: {"lushr", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	IAND:  {"iand", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LAND:  {"land", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	IOR:   {"ior", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LOR:   {"lor", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	IXOR:  {"ixor", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	LXOR:  {"lxor", FormatNone, 2, 1, 0, TypeLong, KindPlain},
	IINC:  {"iinc", FormatIinc, 0, 0, 0, TypeNone, KindIinc},

	I2L:   {"i2l", FormatNone, 1, 1, 0, TypeLong, KindPlain},
	I2F:   {"i2f", FormatNone, 1, 1, 0, TypeFloat, KindPlain},
	I2D:   {"i2d", FormatNone, 1, 1, 0, TypeDouble, KindPlain},
	L2I:   {"l2i", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	L2F:   {"l2f", FormatNone, 1, 1, 0, TypeFloat, KindPlain},
	L2D:   {"l2d", FormatNone, 1, 1, 0, TypeDouble, KindPlain},
	F2I:   {"f2i", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	F2L:   {"f2l", FormatNone, 1, 1, 0, TypeLong, KindPlain},
	F2D:   {"f2d", FormatNone, 1, 1, 0, TypeDouble, KindPlain},
	D2I:   {"d2i", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	D2L:   {"d2l", FormatNone, 1, 1, 0, TypeLong, KindPlain},
	D2F:   {"d2f", FormatNone, 1, 1, 0, TypeFloat, KindPlain},
	I2B:   {"i2b", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	I2C:   {"i2c", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	I2S:   {"i2s", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	LCMP:  {"lcmp", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	FCMPL: {"fcmpl", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	FCMPG: {"fcmpg", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	DCMPL: {"dcmpl", FormatNone, 2, 1, 0, TypeInt, KindPlain},
	DCMPG: {"dcmpg", FormatNone, 2, 1, 0, TypeInt, KindPlain},

	IFEQ:         {"ifeq", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFNE:         {"ifne", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFLT:         {"iflt", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFGE:         {"ifge", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFGT:         {"ifgt", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFLE:         {"ifle", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IF_ICMPEQ:    {"if_icmpeq", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ICMPNE:    {"if_icmpne", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ICMPLT:    {"if_icmplt", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ICMPGE:    {"if_icmpge", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ICMPGT:    {"if_icmpgt", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ICMPLE:    {"if_icmple", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ACMPEQ:    {"if_acmpeq", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	IF_ACMPNE:    {"if_acmpne", FormatBranch, 2, 0, 0, TypeNone, KindIf},
	GOTO:         {"goto", FormatBranch, 0, 0, 0, TypeNone, KindGoto},
	JSR:          {"jsr", FormatBranch, 0, 1, 0, TypeAddress, KindSubroutine},
	RET:          {"ret", FormatLocal, 0, 0, 0, TypeNone, KindRet},
	TABLESWITCH:  {"tableswitch", FormatTableSwitch, 1, 0, 0, TypeNone, KindSwitch},
	LOOKUPSWITCH: {"lookupswitch", FormatLookupSwitch, 1, 0, 0, TypeNone, KindSwitch},
	IRETURN:      {"ireturn", FormatNone, 1, 0, 0, TypeNone, KindReturn},
	LRETURN:      {"lreturn", FormatNone, 1, 0, 0, TypeNone, KindReturn},
	FRETURN:      {"freturn", FormatNone, 1, 0, 0, TypeNone, KindReturn},
	DRETURN:      {"dreturn", FormatNone, 1, 0, 0, TypeNone, KindReturn},
	ARETURN:      {"areturn", FormatNone, 1, 0, 0, TypeNone, KindReturn},
	RETURN:       {"return", FormatNone, 0, 0, 0, TypeNone, KindReturn},

	GETSTATIC:       {"getstatic", FormatPool, 0, 1, 0, TypeOperand, KindField},
	PUTSTATIC:       {"putstatic", FormatPool, 1, 0, 0, TypeNone, KindField},
	GETFIELD:        {"getfield", FormatPool, 1, 1, 0, TypeOperand, KindField},
	PUTFIELD:        {"putfield", FormatPool, 2, 0, 0, TypeNone, KindField},
	INVOKEVIRTUAL:   {"invokevirtual", FormatPool, Variable, Variable, 0, TypeOperand, KindInvoke},
	INVOKESPECIAL:   {"invokespecial", FormatPool, Variable, Variable, 0, TypeOperand, KindInvoke},
	INVOKESTATIC:    {"invokestatic", FormatPool, Variable, Variable, 0, TypeOperand, KindInvoke},
	INVOKEINTERFACE: {"invokeinterface", FormatInterface, Variable, Variable, 0, TypeOperand, KindInvoke},
	INVOKEDYNAMIC:   {"invokedynamic", FormatDynamic, Variable, Variable, 0, TypeOperand, KindInvoke},
	NEW:             {"new", FormatPool, 0, 1, 0, TypeRef, KindTypeRef},
	NEWARRAY:        {"newarray", FormatByte, 1, 1, 0, TypeRef, KindPlain},
	ANEWARRAY:       {"anewarray", FormatPool, 1, 1, 0, TypeRef, KindTypeRef},
	ARRAYLENGTH:     {"arraylength", FormatNone, 1, 1, 0, TypeInt, KindPlain},
	ATHROW:          {"athrow", FormatNone, 1, 0, 0, TypeNone, KindThrow},
	CHECKCAST:       {"checkcast", FormatPool, 1, 1, 0, TypeRef, KindTypeRef},
	INSTANCEOF:      {"instanceof", FormatPool, 1, 1, 0, TypeInt, KindTypeRef},
	MONITORENTER:    {"monitorenter", FormatNone, 1, 0, 0, TypeNone, KindPlain},
	MONITOREXIT:     {"monitorexit", FormatNone, 1, 0, 0, TypeNone, KindPlain},

	WIDE:           {"wide", FormatWide, 0, 0, 0, TypeNone, KindWide},
	MULTIANEWARRAY: {"multianewarray", FormatMultiArray, Variable, 1, 0, TypeRef, KindTypeRef},
	IFNULL:         {"ifnull", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	IFNONNULL:      {"ifnonnull", FormatBranch, 1, 0, 0, TypeNone, KindIf},
	GOTO_W:         {"goto_w", FormatBranchWide, 0, 0, 0, TypeNone, KindGoto},
	JSR_W:          {"jsr_w", FormatBranchWide, 0, 1, 0, TypeAddress, KindSubroutine},
}
