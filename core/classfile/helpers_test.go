package classfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/opcodes"
)

func newTestClass(t *testing.T, name string) *ClassFile {
	t.Helper()
	cf, err := NewClassFile(name, "java/lang/Object")
	require.NoError(t, err)
	return cf
}

func addTestMethod(t *testing.T, cf *ClassFile, name, desc string, insts ...*Instruction) *MethodInfo {
	t.Helper()
	code, err := NewCode(cf.Pool, 4, 4, insts)
	require.NoError(t, err)
	m, err := cf.AddMethod(AccPublic|AccStatic, name, desc, code)
	require.NoError(t, err)
	return m
}

func op(o opcodes.Opcode) *Instruction { return NewInstruction(o) }

func methodref(t *testing.T, cf *ClassFile, class, name, desc string) *MemberRefInfo {
	t.Helper()
	ref, err := cf.Pool.AddMethodrefInfo(class, name, desc)
	require.NoError(t, err)
	return ref
}

func fieldref(t *testing.T, cf *ClassFile, class, name, desc string) *MemberRefInfo {
	t.Helper()
	ref, err := cf.Pool.AddFieldrefInfo(class, name, desc)
	require.NoError(t, err)
	return ref
}

// printClass builds a class whose main method prints 1 + 2.
func printClass(t *testing.T) (*ClassFile, *MethodInfo) {
	t.Helper()
	cf := newTestClass(t, "test/Print")
	out := fieldref(t, cf, "java/lang/System", "out", "Ljava/io/PrintStream;")
	println := methodref(t, cf, "java/io/PrintStream", "println", "(I)V")
	m := addTestMethod(t, cf, "main", "([Ljava/lang/String;)V",
		NewRef(opcodes.GETSTATIC, out),
		op(opcodes.ICONST_1),
		op(opcodes.ICONST_2),
		op(opcodes.IADD),
		NewRef(opcodes.INVOKEVIRTUAL, println),
		op(opcodes.RETURN),
	)
	return cf, m
}

func roundTrip(t *testing.T, cf *ClassFile) (*ClassFile, []byte) {
	t.Helper()
	b, err := cf.Bytes()
	require.NoError(t, err)
	parsed, err := Parse(b)
	require.NoError(t, err)
	return parsed, b
}
