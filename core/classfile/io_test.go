package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/opcodes"
)

type mapLookup map[string]*ClassFile

func (m mapLookup) LookupClass(name string) *ClassFile { return m[name] }

func TestAnnotateIO(t *testing.T) {
	cf, m := printClass(t)
	n, err := cf.AnnotateIO(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	attr, ok := m.Code().Attribute(AttrIOInstructions).(*IOInstructionsAttribute)
	require.True(t, ok)
	assert.Equal(t, []int{4}, attr.Instructions)

	parsed, _ := roundTrip(t, cf)
	attr, ok = parsed.Methods[0].Code().Attribute(AttrIOInstructions).(*IOInstructionsAttribute)
	require.True(t, ok)
	assert.Equal(t, []int{4}, attr.Instructions)

	// Annotating again replaces the attribute.
	_, err = parsed.AnnotateIO(nil)
	require.NoError(t, err)
	count := 0
	for _, a := range parsed.Methods[0].Code().Attributes {
		if a.Name() == AttrIOInstructions {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIOSubclassesNeedLookup(t *testing.T) {
	logger := newTestClass(t, "app/Logger")
	logger.Super, _ = logger.Pool.AddClassInfo("java/io/PrintStream")

	cf := newTestClass(t, "app/Main")
	write := methodref(t, cf, "app/Logger", "println", "(Ljava/lang/String;)V")
	size := methodref(t, cf, "app/Logger", "size", "()I")
	m := addTestMethod(t, cf, "main", "(Lapp/Logger;)V",
		NewLocal(opcodes.ALOAD, 0),
		op(opcodes.ACONST_NULL),
		NewRef(opcodes.INVOKEVIRTUAL, write),
		NewLocal(opcodes.ALOAD, 0),
		NewRef(opcodes.INVOKEVIRTUAL, size),
		op(opcodes.POP),
		op(opcodes.RETURN),
	)

	assert.Empty(t, ComputeIOInstructions(m.Code(), nil))
	lookup := mapLookup{"app/Logger": logger}
	assert.Equal(t, []int{2}, ComputeIOInstructions(m.Code(), lookup))
}

func TestInputCalls(t *testing.T) {
	cf := newTestClass(t, "app/Reader")
	next := methodref(t, cf, "java/util/Scanner", "nextInt", "()I")
	m := addTestMethod(t, cf, "read", "(Ljava/util/Scanner;)I",
		NewLocal(opcodes.ALOAD, 0),
		NewRef(opcodes.INVOKEVIRTUAL, next),
		op(opcodes.IRETURN),
	)
	assert.True(t, IsInputCall(m.Code().Instruction(1), nil))
	assert.False(t, IsOutputCall(m.Code().Instruction(1), nil))
	assert.Equal(t, []int{1}, ComputeIOInstructions(m.Code(), nil))
}
