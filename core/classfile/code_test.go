package classfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/opcodes"
)

// branchyMethod: 0 iconst_0, 1 ifeq -> 3, 2 nop, 3 return.
func branchyMethod(t *testing.T) (*ClassFile, *MethodInfo) {
	cf := newTestClass(t, "test/Branchy")
	m := addTestMethod(t, cf, "f", "()V",
		op(opcodes.ICONST_0),
		NewBranch(opcodes.IFEQ, 3),
		op(opcodes.NOP),
		op(opcodes.RETURN),
	)
	return cf, m
}

func TestSetInstructionsInsertsAndRelinks(t *testing.T) {
	cf, m := branchyMethod(t)
	code := m.Code()
	old := code.Instructions()

	branch := old[1]
	branch.Target = 4
	err := cf.SetMethodInstructions(m, []*Instruction{op(opcodes.NOP), old[0], branch, old[2], old[3]})
	require.NoError(t, err)

	assert.Equal(t, 5, code.Len())
	assert.Equal(t, 2, branch.Index())
	assert.Equal(t, 2, branch.Offset())
	assert.Equal(t, int32(4), branch.Jump())
	assert.Equal(t, []int32{2}, code.Incoming(4))
	assert.Empty(t, code.Incoming(3))
}

func TestSetInstructionsTooLongRollsBack(t *testing.T) {
	cf, m := branchyMethod(t)
	code := m.Code()
	before, err := cf.Bytes()
	require.NoError(t, err)

	old := code.Instructions()
	insts := make([]*Instruction, 0, 70000)
	for i := 0; i < 70000; i++ {
		insts = append(insts, op(opcodes.NOP))
	}
	old[1].Target = len(insts) + 3
	insts = append(insts, old...)

	err = cf.SetMethodInstructions(m, insts)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.True(t, errors.Is(err, ErrCodeTooLong))
	assert.Equal(t, "test/Branchy", se.Class)
	assert.Equal(t, "f()V", se.Method)

	assert.Equal(t, 4, code.Len())
	assert.Equal(t, 3, old[1].Target)
	assert.Equal(t, 1, old[1].Index())
	assert.Equal(t, 1, old[1].Offset())
	after, err := cf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetInstructionsBranchOutOfRange(t *testing.T) {
	cf, m := branchyMethod(t)
	insts := []*Instruction{NewBranch(opcodes.GOTO, 20001)}
	for i := 0; i < 20000; i++ {
		insts = append(insts, op(opcodes.NOP))
	}
	insts = append(insts, op(opcodes.RETURN))

	// 20000 nops are within range of a short jump.
	require.NoError(t, cf.SetMethodInstructions(m, insts))

	far := []*Instruction{NewBranch(opcodes.GOTO, 40001)}
	for i := 0; i < 40000; i++ {
		far = append(far, op(opcodes.NOP))
	}
	far = append(far, op(opcodes.RETURN))
	err := cf.SetMethodInstructions(m, far)
	assert.ErrorIs(t, err, ErrBranchOutOfRange)
	assert.Equal(t, 20002, m.Code().Len())

	far[0] = NewBranch(opcodes.GOTO_W, 40001)
	require.NoError(t, cf.SetMethodInstructions(m, far))
	assert.Equal(t, int32(5+40000), m.Code().Instruction(0).Jump())
}

func TestSetInstructionsRejectsDanglingTargets(t *testing.T) {
	cf, m := branchyMethod(t)
	err := cf.SetMethodInstructions(m, []*Instruction{NewBranch(opcodes.GOTO, 5), op(opcodes.RETURN)})
	assert.ErrorIs(t, err, ErrBranchOutOfRange)
	assert.Equal(t, 4, m.Code().Len())

	m.Code().Handlers = []*ExceptionHandler{{Start: 0, End: 4, Handler: 3}}
	err = cf.SetMethodInstructions(m, []*Instruction{op(opcodes.RETURN)})
	assert.ErrorIs(t, err, ErrBranchOutOfRange)
}

func TestSetInstructionsWidensOperands(t *testing.T) {
	cf, m := branchyMethod(t)
	var last *StringInfo
	for i := 0; i < 300; i++ {
		s, err := cf.Pool.AddStringInfo(string(rune('a'+i%26)) + string(rune('A'+i/26)))
		require.NoError(t, err)
		last = s
	}
	ldc := NewRef(opcodes.LDC, last)
	store := NewLocal(opcodes.ASTORE, 400)
	require.NoError(t, cf.SetMethodInstructions(m, []*Instruction{ldc, store, op(opcodes.RETURN)}))
	assert.Equal(t, opcodes.LDC_W, ldc.Op)
	assert.True(t, store.Wide)
	assert.Equal(t, 3+4+1, m.Code().CodeLength())

	parsed, _ := roundTrip(t, cf)
	got := parsed.Methods[0].Code()
	assert.Equal(t, "ldc_w "+last.String(), got.Instruction(0).String())
	assert.Equal(t, "wide astore 400", got.Instruction(1).String())
}

func TestHandlerRangeIsHalfOpen(t *testing.T) {
	h := &ExceptionHandler{Start: 2, End: 5, Handler: 7}
	assert.False(t, h.Handles(1))
	assert.True(t, h.Handles(2))
	assert.True(t, h.Handles(4))
	assert.False(t, h.Handles(5))
	assert.Equal(t, "", h.CatchName())
}

func TestHandlerQueries(t *testing.T) {
	code := &Code{Handlers: []*ExceptionHandler{
		{Start: 0, End: 4, Handler: 6},
		{Start: 2, End: 4, Handler: 8},
		{Start: 0, End: 4, Handler: 8},
		{Start: 10, End: 12, Handler: 14},
	}}
	covering := code.HandlersCovering(3)
	require.Len(t, covering, 3)
	assert.Same(t, code.Handlers[0], covering[0])
	assert.Same(t, code.Handlers[2], covering[2])
	assert.Empty(t, code.HandlersCovering(5))

	assert.Nil(t, code.EnclosingHandlers(5))
	enclosing := code.EnclosingHandlers(7)
	require.Len(t, enclosing, 1)
	assert.Equal(t, 6, enclosing[0].Handler)
	enclosing = code.EnclosingHandlers(9)
	require.Len(t, enclosing, 2)
	assert.Same(t, code.Handlers[1], enclosing[0])
	assert.Same(t, code.Handlers[2], enclosing[1])
	assert.Equal(t, 14, code.EnclosingHandlers(20)[0].Handler)

	assert.True(t, code.IsHandlerEntry(8))
	assert.False(t, code.IsHandlerEntry(9))
}

func TestSuccessorsAndPredecessors(t *testing.T) {
	sw := NewInstruction(opcodes.LOOKUPSWITCH)
	sw.Target = 7
	sw.Switch = &Switch{Keys: []int32{1, 2, 3}, Targets: []int{5, 6, 5}}
	code, err := NewCode(NewConstantPool(), 2, 1, []*Instruction{
		/* 0 */ op(opcodes.ICONST_0),
		/* 1 */ NewBranch(opcodes.IFNE, 4),
		/* 2 */ NewBranch(opcodes.GOTO, 0),
		/* 3 */ op(opcodes.ATHROW),
		/* 4 */ op(opcodes.ICONST_1),
		/* 5 */ sw,
		/* 6 */ op(opcodes.RETURN),
		/* 7 */ op(opcodes.RETURN),
	})
	require.NoError(t, err)
	code.Handlers = []*ExceptionHandler{{Start: 0, End: 2, Handler: 3}}

	assert.Equal(t, []int{1}, code.Successors(0))
	assert.Equal(t, []int{2, 4}, code.Successors(1))
	assert.Equal(t, []int{0}, code.Successors(2))
	assert.Nil(t, code.Successors(3))
	assert.Equal(t, []int{7, 5, 6}, code.Successors(5))
	assert.Nil(t, code.Successors(7))

	assert.Equal(t, []int{2}, code.Predecessors(0))
	assert.Equal(t, []int{1}, code.Predecessors(2))
	assert.Equal(t, []int{0, 1}, code.Predecessors(3), "handler entry lists protected instructions")
	assert.Equal(t, []int{1}, code.Predecessors(4))
	assert.Equal(t, []int{4, 5}, code.Predecessors(5))
	assert.Equal(t, []int{5}, code.Predecessors(7))
	assert.True(t, code.HasIncoming(0))
	assert.False(t, code.HasIncoming(1))
	assert.Equal(t, []int32{5}, code.Incoming(5))
}

func TestInstructionAt(t *testing.T) {
	_, m := printClass(t)
	code := m.Code()
	assert.Equal(t, 0, code.InstructionAt(0))
	assert.Equal(t, -1, code.InstructionAt(1))
	assert.Equal(t, 1, code.InstructionAt(3))
	assert.Equal(t, -1, code.InstructionAt(code.CodeLength()))
}
