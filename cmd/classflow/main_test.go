package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

func init() {
	color.NoColor = true
}

func op(o opcodes.Opcode) *classfile.Instruction { return classfile.NewInstruction(o) }

func iinc(slot int, delta int32) *classfile.Instruction {
	ins := classfile.NewLocal(opcodes.IINC, slot)
	ins.Value = delta
	return ins
}

// sampleClass builds demo/Sample with an adder and a counting loop:
//
//	static int add(int a, int b) { return a + b; }
//	static void count() { for (int i = 0; i < 10; i++) {} }
func sampleClass(t *testing.T) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.NewClassFile("demo/Sample", "java/lang/Object")
	require.NoError(t, err)
	add := func(name, desc string, maxStack, maxLocals uint16, insts ...*classfile.Instruction) {
		code, err := classfile.NewCode(cf.Pool, maxStack, maxLocals, insts)
		require.NoError(t, err)
		_, err = cf.AddMethod(classfile.AccPublic|classfile.AccStatic, name, desc, code)
		require.NoError(t, err)
	}
	add("add", "(II)I", 2, 2,
		op(opcodes.ILOAD_0),
		op(opcodes.ILOAD_1),
		op(opcodes.IADD),
		op(opcodes.IRETURN),
	)
	add("count", "()V", 2, 1,
		op(opcodes.ICONST_0),
		classfile.NewLocal(opcodes.ISTORE, 0),
		classfile.NewBranch(opcodes.GOTO, 4),
		iinc(0, 1),
		op(opcodes.ILOAD_0),
		classfile.NewPush(opcodes.BIPUSH, 10),
		classfile.NewBranch(opcodes.IF_ICMPLT, 3),
		op(opcodes.RETURN),
	)
	return cf
}

// writeSample stores the sample class below a fresh directory and returns
// the path of the class file.
func writeSample(t *testing.T) string {
	t.Helper()
	data, err := sampleClass(t).Bytes()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "demo", "Sample.class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// run executes the command line and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"classflow", "--verbosity", "1"}, args...))
	return out.String(), err
}

func TestDisasm(t *testing.T) {
	out, err := run(t, "disasm", "--method", "count", writeSample(t))
	require.NoError(t, err)
	assert.Contains(t, out, "demo/Sample.count()V")
	assert.Contains(t, out, "if_icmplt -> 3")
	assert.Contains(t, out, "for")
	assert.NotContains(t, out, "add(II)I")
}

func TestDeps(t *testing.T) {
	out, err := run(t, "deps", "--method", "add(II)I", writeSample(t))
	require.NoError(t, err)
	assert.Contains(t, out, "[0] [1]")
	assert.Contains(t, out, "computed max_stack=2 declared=2")
}

func TestDepsPersistentCache(t *testing.T) {
	sample := writeSample(t)
	dir := t.TempDir()
	flags := []string{"--cache.engine", "bbolt", "--cache.dir", dir}

	_, err := run(t, append(append([]string{"deps"}, flags...), sample)...)
	require.NoError(t, err)

	out, err := run(t, append([]string{"cache", "stats"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 2")

	_, err = run(t, append(append([]string{"cache", "drop"}, flags...), "demo.Sample")...)
	require.NoError(t, err)
	out, err = run(t, append([]string{"cache", "stats"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 0")
}

func TestLoops(t *testing.T) {
	out, err := run(t, "loops", "--paths", writeSample(t))
	require.NoError(t, err)
	assert.Contains(t, out, "demo/Sample.count()V")
	assert.Contains(t, out, "loop 6 -> 3")
	assert.NotContains(t, out, "add(II)I")
}

func TestCFG(t *testing.T) {
	sample := writeSample(t)
	out, err := run(t, "cfg", "--method", "count", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph CFG {")
	assert.Contains(t, out, "subgraph cluster_m0")
	assert.Contains(t, out, "m0_b2 -> m0_b1;")

	file := filepath.Join(t.TempDir(), "count.dot")
	_, err = run(t, "cfg", "--out", file, sample)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cluster_m1")

	_, err = run(t, "cfg", "--format", "png", sample)
	assert.Error(t, err)
}

func TestRoundtrip(t *testing.T) {
	sample := writeSample(t)
	out, err := run(t, "roundtrip", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "identical")

	dir := t.TempDir()
	out, err = run(t, "roundtrip", "--write.stackmargin", "2", "--out", dir, sample)
	require.NoError(t, err)
	assert.Contains(t, out, "rewritten")

	data, err := os.ReadFile(filepath.Join(dir, "demo", "Sample.class"))
	require.NoError(t, err)
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), cf.Method("add", "(II)I").Code().MaxStack())
}

func TestInspect(t *testing.T) {
	sample := writeSample(t)
	out, err := run(t, "inspect", "--pool", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "demo.Sample")
	assert.Contains(t, out, "(II)I")

	out, err = run(t, "inspect", "--method", "add", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "add(II)I")
	assert.Contains(t, out, "Op:")
}

func TestNoInput(t *testing.T) {
	_, err := run(t, "disasm")
	assert.ErrorIs(t, err, errNoInput)
}
