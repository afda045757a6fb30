package gopool

import (
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	// Init a instance pool when importing ants.
	defaultPool, _   = ants.NewPool(ants.DefaultAntsPoolSize, ants.WithExpiryDuration(10*time.Second))
	minNumberPerTask = 5
)

// Submit submits a task to the default pool.
func Submit(task func()) error {
	return defaultPool.Submit(task)
}

// Running returns the number of the currently running goroutines.
func Running() int {
	return defaultPool.Running()
}

// Cap returns the capacity of this default pool.
func Cap() int {
	return defaultPool.Cap()
}

// Threads returns how many workers suit tasks items: one per
// minNumberPerTask items, capped at the CPU count.
func Threads(tasks int) int {
	threads := tasks / minNumberPerTask
	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	} else if threads == 0 {
		threads = 1
	}
	return threads
}

// Pool is a bounded worker pool.
type Pool struct {
	pool *ants.Pool
}

// NewPool returns a pool running at most size tasks at once.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithExpiryDuration(10*time.Second))
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p}, nil
}

// Run calls task(0..n-1) on the pool and waits for all of them.
func (p *Pool) Run(n int, task func(i int)) error {
	return run(p.pool, n, task)
}

// Release closes the pool.
func (p *Pool) Release() {
	p.pool.Release()
}

// Run calls task(0..n-1) on the default pool and waits for all of them.
func Run(n int, task func(i int)) error {
	return run(defaultPool, n, task)
}

func run(pool *ants.Pool, n int, task func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			task(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return nil
}
