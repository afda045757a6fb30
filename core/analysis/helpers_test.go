package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

func op(o opcodes.Opcode) *classfile.Instruction { return classfile.NewInstruction(o) }

func local(o opcodes.Opcode, slot int) *classfile.Instruction { return classfile.NewLocal(o, slot) }

func branch(o opcodes.Opcode, target int) *classfile.Instruction {
	return classfile.NewBranch(o, target)
}

func push(o opcodes.Opcode, v int32) *classfile.Instruction { return classfile.NewPush(o, v) }

func iinc(slot int, delta int32) *classfile.Instruction {
	ins := classfile.NewLocal(opcodes.IINC, slot)
	ins.Value = delta
	return ins
}

// method adds a static method built from insts to a fresh class.
func method(t *testing.T, desc string, insts ...*classfile.Instruction) (*classfile.ClassFile, *classfile.MethodInfo) {
	t.Helper()
	cf, err := classfile.NewClassFile("demo/Subject", "java/lang/Object")
	require.NoError(t, err)
	return cf, addMethod(t, cf, "f", desc, insts...)
}

func addMethod(t *testing.T, cf *classfile.ClassFile, name, desc string, insts ...*classfile.Instruction) *classfile.MethodInfo {
	t.Helper()
	code, err := classfile.NewCode(cf.Pool, 8, 4, insts)
	require.NoError(t, err)
	m, err := cf.AddMethod(classfile.AccPublic|classfile.AccStatic, name, desc, code)
	require.NoError(t, err)
	return m
}

func analyze(t *testing.T, m *classfile.MethodInfo) *StackDependencies {
	t.Helper()
	deps, err := Analyze(m.Code(), DefaultConfig)
	require.NoError(t, err)
	return deps
}
