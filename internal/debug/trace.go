package debug

import (
	"context"
	"errors"
	"os"
	"runtime/trace"
	"sync"

	"github.com/classflow/classflow/log"
)

// HandlerT owns the Go execution trace of the process.
type HandlerT struct {
	mu        sync.Mutex
	traceW    *os.File
	traceFile string

	ctx  context.Context
	task *trace.Task
}

// StartGoTrace turns on tracing, writing to the given file.
func (h *HandlerT) StartGoTrace(file string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.traceW != nil {
		return errors.New("trace already in progress")
	}
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	h.traceW, h.traceFile = f, file
	h.ctx, h.task = trace.NewTask(context.Background(), "classflow")
	log.Info("Go tracing started", "dump", file)
	return nil
}

// StopGoTrace stops an ongoing trace.
func (h *HandlerT) StopGoTrace() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.traceW == nil {
		return errors.New("trace not in progress")
	}
	if h.task != nil {
		h.task.End()
		h.task = nil
	}
	trace.Stop()
	log.Info("Done writing Go trace", "dump", h.traceFile)
	err := h.traceW.Close()
	h.traceW = nil
	return err
}

// Tracing reports whether a trace is being written.
func (h *HandlerT) Tracing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task != nil
}

// StartRegionAuto opens a trace region named msg and returns the function
// closing it. It is a no-op when no trace is running.
func (h *HandlerT) StartRegionAuto(msg string) func() {
	h.mu.Lock()
	ctx, task := h.ctx, h.task
	h.mu.Unlock()
	if task == nil {
		return func() {}
	}
	region := trace.StartRegion(ctx, msg)
	return region.End
}
