package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

func TestAnalyzerMemoizes(t *testing.T) {
	cache, err := NewMemoryCache(16)
	require.NoError(t, err)
	a := NewAnalyzer(cache, Config{})
	assert.Equal(t, DefaultConfig.MaxLoopPaths, a.Config().MaxLoopPaths)

	cf, m := method(t, "(II)I",
		op(opcodes.ILOAD_0),
		op(opcodes.ILOAD_1),
		op(opcodes.IADD),
		op(opcodes.IRETURN),
	)
	first, err := a.StackDependencies(cf, m)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	second, err := a.StackDependencies(cf, m)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Rewriting the body changes the key.
	require.NoError(t, cf.SetMethodInstructions(m, []*classfile.Instruction{
		op(opcodes.ILOAD_1),
		op(opcodes.IRETURN),
	}))
	third, err := a.StackDependencies(cf, m)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, []int{0}, third.Producers(1, 0))
}

func TestAnalyzerErrorContext(t *testing.T) {
	cf, m := method(t, "()I", op(opcodes.IADD), op(opcodes.IRETURN))
	a := NewAnalyzer(nil, DefaultConfig)
	_, err := a.StackDependencies(cf, m)

	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "demo/Subject", ie.Class)
	assert.Equal(t, "f()I", ie.Method)
	assert.Equal(t, 0, ie.Instruction)
	assert.Contains(t, err.Error(), "demo/Subject.f()I")
}

func TestKeyForStable(t *testing.T) {
	cf, m := method(t, "()V", op(opcodes.RETURN))
	k1 := KeyFor(cf, m)
	k2 := KeyFor(cf, m)
	assert.Equal(t, k1, k2)
	assert.Equal(t, "demo/Subject", k1.Class)
	assert.Contains(t, k1.String(), "demo/Subject.f()V@")

	m.Code().Handlers = []*classfile.ExceptionHandler{{Start: 0, End: 1, Handler: 0}}
	assert.NotEqual(t, k1.CodeHash, KeyFor(cf, m).CodeHash)
}

func TestTieredCache(t *testing.T) {
	front, err := NewMemoryCache(4)
	require.NoError(t, err)
	back, err := NewMemoryCache(4)
	require.NoError(t, err)
	tiers := TieredCache{front, back}

	cf, m := method(t, "()V", op(opcodes.RETURN))
	key := KeyFor(cf, m)
	_, ok := tiers.Get(key)
	assert.False(t, ok)

	deps := newStackDependencies(1)
	back.Put(key, deps)
	got, ok := tiers.Get(key)
	require.True(t, ok)
	assert.Same(t, deps, got)
	assert.Equal(t, 1, front.Len(), "hit is promoted")

	front.Purge()
	other := newStackDependencies(1)
	tiers.Put(key, other)
	got, _ = front.Get(key)
	assert.Same(t, other, got)
	got, _ = back.Get(key)
	assert.Same(t, other, got)
}
