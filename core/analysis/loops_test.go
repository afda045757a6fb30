package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

// forLoop is the classic jump-to-test shape:
//
//	for (int i = 0; i < 10; i++) {}
func forLoop(t *testing.T) (*classfile.ClassFile, *classfile.MethodInfo) {
	return method(t, "()V",
		op(opcodes.ICONST_0),         // 0
		local(opcodes.ISTORE, 0),     // 1
		branch(opcodes.GOTO, 4),      // 2
		iinc(0, 1),                   // 3
		op(opcodes.ILOAD_0),          // 4
		push(opcodes.BIPUSH, 10),     // 5
		branch(opcodes.IF_ICMPLT, 3), // 6
		op(opcodes.RETURN),           // 7
	)
}

// whileLoop tests at the top and jumps back at the bottom.
func whileLoop(t *testing.T) (*classfile.ClassFile, *classfile.MethodInfo) {
	return method(t, "()V",
		op(opcodes.ICONST_0),         // 0
		local(opcodes.ISTORE, 0),     // 1
		op(opcodes.ILOAD_0),          // 2
		push(opcodes.BIPUSH, 10),     // 3
		branch(opcodes.IF_ICMPGE, 7), // 4
		iinc(0, 1),                   // 5
		branch(opcodes.GOTO, 2),      // 6
		op(opcodes.RETURN),           // 7
	)
}

func codeOf(_ *classfile.ClassFile, m *classfile.MethodInfo) *classfile.Code { return m.Code() }

func TestForLoop(t *testing.T) {
	loops := NewLoops(codeOf(forLoop(t)))
	assert.True(t, loops.IsLoop(6))
	assert.Equal(t, BranchFor, loops.Kind(6))
	assert.Equal(t, BranchGoto, loops.Kind(2))
	assert.False(t, loops.IsLoop(2))
	assert.Equal(t, NotBranch, loops.Kind(0))
	assert.Equal(t, []Loop{{Branch: 6, Header: 3, Kind: BranchFor}}, loops.All())

	body, err := loops.Body(6)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6}, body)
}

func TestWhileLoop(t *testing.T) {
	loops := NewLoops(codeOf(whileLoop(t)))
	assert.Equal(t, BranchWhile, loops.Kind(6))
	assert.Equal(t, BranchIf, loops.Kind(4))
	assert.True(t, loops.Kind(6).IsLoop())
	assert.False(t, loops.Kind(4).IsLoop())
	assert.Equal(t, "while", loops.Kind(6).String())

	// Cached answers stay stable.
	assert.True(t, loops.IsLoop(6))
	assert.False(t, loops.IsLoop(4))
}

func TestSwitchKind(t *testing.T) {
	sw := classfile.NewInstruction(opcodes.LOOKUPSWITCH)
	sw.Target = 3
	sw.Switch = &classfile.Switch{Keys: []int32{1}, Targets: []int{2}}
	_, m := method(t, "(I)V",
		op(opcodes.ILOAD_0),
		sw,
		op(opcodes.RETURN),
		op(opcodes.RETURN),
	)
	loops := NewLoops(m.Code())
	assert.Equal(t, BranchSwitch, loops.Kind(1))
	assert.Empty(t, loops.All())
}

func TestLoopPaths(t *testing.T) {
	loops := NewLoops(codeOf(whileLoop(t)))
	set, err := loops.Paths(6, 16)
	require.NoError(t, err)

	want := &PathSet{
		Header: 2,
		Branch: 6,
		Paths: []LoopPath{
			{Instructions: []int{2, 3, 4, 5, 6}, Forks: []Fork{{At: 4, Took: 5}}, End: EndHeader, Last: 2},
			{Instructions: []int{2, 3, 4}, Forks: []Fork{{At: 4, Took: 7}}, End: EndExit, Last: 7},
		},
	}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	set, err = loops.Paths(6, 1)
	require.NoError(t, err)
	assert.Len(t, set.Paths, 1)
	assert.True(t, set.Truncated)

	_, err = loops.Paths(4, 16)
	assert.ErrorIs(t, err, ErrNotLoop)
}

func TestLoopPathsThroughAnalyzer(t *testing.T) {
	a := NewAnalyzer(nil, Config{MaxLoopPaths: 1})
	cf, m := forLoop(t)
	set, err := a.LoopPaths(cf, m, 6)
	require.NoError(t, err)
	require.Len(t, set.Paths, 1)
	assert.True(t, set.Truncated)

	// The fall-through of the back edge leaves the loop first.
	first := set.Paths[0]
	assert.Equal(t, EndExit, first.End)
	assert.Equal(t, 7, first.Last)
	assert.Equal(t, []int{3, 4, 5, 6}, first.Instructions)
	assert.Equal(t, []Fork{{At: 6, Took: 7}}, first.Forks)

	cf, m = whileLoop(t)
	set, err = a.LoopPaths(cf, m, 6)
	require.NoError(t, err)
	assert.Equal(t, EndHeader, set.Paths[0].End)
}

func TestAnalyzerReusesLoops(t *testing.T) {
	a := NewAnalyzer(nil, DefaultConfig)
	cf, m := whileLoop(t)
	l := a.Loops(cf, m)
	require.NotNil(t, l)
	assert.Same(t, l, a.Loops(cf, m))
	assert.Equal(t, loopUnknown, l.state[6])

	first, err := a.LoopPaths(cf, m, 6)
	require.NoError(t, err)
	assert.Equal(t, loopYes, l.state[6])

	second, err := a.LoopPaths(cf, m, 6)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// A rewritten body hashes differently and gets a fresh analysis.
	other, om := forLoop(t)
	assert.NotSame(t, l, a.Loops(other, om))
}
