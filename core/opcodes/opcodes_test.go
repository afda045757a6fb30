package opcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCoversInstructionSet(t *testing.T) {
	for b := 0; b <= int(JSR_W); b++ {
		op := Opcode(b)
		require.Truef(t, op.Valid(), "opcode 0x%02x missing", b)
	}
	for b := int(JSR_W) + 1; b < 256; b++ {
		op := Opcode(b)
		assert.Falsef(t, op.Valid(), "opcode 0x%02x should be undefined", b)
		_, ok := Lookup(op)
		assert.False(t, ok)
	}
}

func TestMnemonics(t *testing.T) {
	assert.Equal(t, "iadd", IADD.String())
	assert.Equal(t, "dup2_x2", DUP2_X2.String())
	assert.Equal(t, "invokedynamic", INVOKEDYNAMIC.String())
	assert.Equal(t, "opcode(0xfe)", Opcode(0xfe).String())
}

func TestOperandSizes(t *testing.T) {
	tests := []struct {
		op   Opcode
		size int
	}{
		{NOP, 0},
		{BIPUSH, 1},
		{SIPUSH, 2},
		{LDC, 1},
		{LDC_W, 2},
		{ILOAD, 1},
		{IINC, 2},
		{GOTO, 2},
		{GOTO_W, 4},
		{INVOKEINTERFACE, 4},
		{INVOKEDYNAMIC, 4},
		{MULTIANEWARRAY, 3},
		{TABLESWITCH, Variable},
		{LOOKUPSWITCH, Variable},
		{WIDE, Variable},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.size, tt.op.Operands(), "%v", tt.op)
	}
}

func TestStackCounts(t *testing.T) {
	info, ok := Lookup(IADD)
	require.True(t, ok)
	assert.Equal(t, 2, info.Pops)
	assert.Equal(t, 1, info.Pushes)
	assert.Equal(t, TypeInt, info.Produces)

	info, _ = Lookup(LASTORE)
	assert.Equal(t, 3, info.Pops)
	assert.Equal(t, 0, info.Pushes)

	info, _ = Lookup(DUP_X1)
	assert.Equal(t, 2, info.Peeks)
	assert.Equal(t, 1, info.Pushes)
	assert.True(t, DUP_X1.IsShuffle())

	info, _ = Lookup(INVOKEVIRTUAL)
	assert.Equal(t, Variable, info.Pops)
	assert.Equal(t, TypeOperand, info.Produces)
}

func TestControlFlowKinds(t *testing.T) {
	assert.True(t, IFEQ.IsBranch())
	assert.True(t, IFEQ.FallsThrough())
	assert.True(t, GOTO.IsBranch())
	assert.False(t, GOTO.FallsThrough())
	assert.False(t, GOTO.IsTerminal())
	assert.True(t, TABLESWITCH.IsBranch())
	assert.True(t, ATHROW.IsTerminal())
	assert.True(t, RET.IsTerminal())
	assert.True(t, IRETURN.IsTerminal())
	assert.False(t, IADD.IsBranch())
	assert.True(t, IADD.FallsThrough())
}

func TestImplicitLocal(t *testing.T) {
	slot, ok := ILOAD_2.ImplicitLocal()
	assert.True(t, ok)
	assert.Equal(t, 2, slot)
	slot, ok = ASTORE_3.ImplicitLocal()
	assert.True(t, ok)
	assert.Equal(t, 3, slot)
	slot, ok = DLOAD_0.ImplicitLocal()
	assert.True(t, ok)
	assert.Equal(t, 0, slot)
	_, ok = ILOAD.ImplicitLocal()
	assert.False(t, ok)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, 2, Category(TypeLong))
	assert.Equal(t, 2, Category(TypeDouble))
	assert.Equal(t, 1, Category(TypeInt))
	assert.Equal(t, 1, Category(TypeAddress))
}
