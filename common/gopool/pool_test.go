package gopool

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var sum int64
	require.NoError(t, Run(100, func(i int) {
		atomic.AddInt64(&sum, int64(i))
	}))
	assert.Equal(t, int64(4950), sum)
	assert.Greater(t, Cap(), 0)
	assert.GreaterOrEqual(t, Running(), 0)
}

func TestPool(t *testing.T) {
	p, err := NewPool(2)
	require.NoError(t, err)
	defer p.Release()

	seen := make([]int32, 10)
	require.NoError(t, p.Run(len(seen), func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}))
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "task %d", i)
	}

	done := make(chan struct{})
	require.NoError(t, Submit(func() { close(done) }))
	<-done
}

func TestThreads(t *testing.T) {
	assert.Equal(t, 1, Threads(0))
	assert.Equal(t, 1, Threads(9))
	assert.LessOrEqual(t, Threads(1<<20), runtime.NumCPU())
}
