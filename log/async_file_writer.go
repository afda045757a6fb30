package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// rotationTicker fires once whenever the wall clock reaches the next
// rotation hour. With zero rotate hours it never fires.
type rotationTicker struct {
	stop     chan struct{}
	stopOnce sync.Once
	C        <-chan time.Time
}

func newRotationTicker(rotateHours uint) *rotationTicker {
	ch := make(chan time.Time)
	rt := &rotationTicker{
		stop: make(chan struct{}),
		C:    ch,
	}
	if rotateHours > 0 {
		go rt.loop(ch, rotateHours)
	}
	return rt
}

func (rt *rotationTicker) Stop() {
	rt.stopOnce.Do(func() { close(rt.stop) })
}

func (rt *rotationTicker) loop(ch chan<- time.Time, rotateHours uint) {
	next := nextRotationHour(time.Now(), rotateHours)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			if t.Hour() != next {
				continue
			}
			select {
			case ch <- t:
			case <-rt.stop:
				return
			}
			next = nextRotationHour(time.Now(), rotateHours)
		case <-rt.stop:
			return
		}
	}
}

func nextRotationHour(now time.Time, delta uint) int {
	return now.Add(time.Hour * time.Duration(delta)).Hour()
}

// AsyncFileWriter buffers log lines in a channel and appends them to an
// hour-stamped file from a single goroutine. The configured path is kept as a
// symlink to the current file.
type AsyncFileWriter struct {
	filePath string
	fd       *os.File

	wg      sync.WaitGroup
	started int32
	buf     chan []byte
	stop    chan struct{}
	ticker  *rotationTicker
}

// NewAsyncFileWriter creates a writer that queues at most bufLines pending
// writes; writes beyond that are dropped.
func NewAsyncFileWriter(filePath string, bufLines int64, rotateHours uint) *AsyncFileWriter {
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		panic(fmt.Sprintf("get file path of logger error. filePath=%s, err=%s", filePath, err))
	}
	return &AsyncFileWriter{
		filePath: absFilePath,
		buf:      make(chan []byte, bufLines),
		stop:     make(chan struct{}),
		ticker:   newRotationTicker(rotateHours),
	}
}

func (w *AsyncFileWriter) initLogFile() error {
	realFilePath := w.timeFilePath(w.filePath)
	fd, err := os.OpenFile(realFilePath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	w.fd = fd

	if _, err := os.Lstat(w.filePath); err == nil {
		if err := os.Remove(w.filePath); err != nil {
			return err
		}
	}
	return os.Symlink(realFilePath, w.filePath)
}

// Start opens the current log file and launches the writer goroutine.
func (w *AsyncFileWriter) Start() error {
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return errors.New("logger has already been started")
	}
	if err := w.initLogFile(); err != nil {
		atomic.StoreInt32(&w.started, 0)
		return err
	}

	w.wg.Add(1)
	go func() {
		defer func() {
			w.flushBuffer()
			w.flushAndClose()
			atomic.StoreInt32(&w.started, 0)
			w.wg.Done()
		}()

		for {
			select {
			case msg := <-w.buf:
				w.SyncWrite(msg)
			case <-w.stop:
				return
			}
		}
	}()
	return nil
}

func (w *AsyncFileWriter) flushBuffer() {
	for {
		select {
		case msg := <-w.buf:
			w.SyncWrite(msg)
		default:
			return
		}
	}
}

// SyncWrite writes msg to the current file, rotating first if due.
func (w *AsyncFileWriter) SyncWrite(msg []byte) {
	w.rotateFile()
	if w.fd != nil {
		w.fd.Write(msg)
	}
}

func (w *AsyncFileWriter) rotateFile() {
	select {
	case <-w.ticker.C:
		if err := w.flushAndClose(); err != nil {
			fmt.Fprintf(os.Stderr, "flush and close file error. err=%s", err)
		}
		if err := w.initLogFile(); err != nil {
			fmt.Fprintf(os.Stderr, "init log file error. err=%s", err)
		}
	default:
	}
}

// Stop drains pending writes, closes the file and stops rotation.
func (w *AsyncFileWriter) Stop() {
	if atomic.LoadInt32(&w.started) == 1 {
		w.stop <- struct{}{}
		w.wg.Wait()
	}
	w.ticker.Stop()
}

// Write queues a copy of msg. It never blocks.
func (w *AsyncFileWriter) Write(msg []byte) (n int, err error) {
	buf := make([]byte, len(msg))
	copy(buf, msg)

	select {
	case w.buf <- buf:
	default:
	}
	return len(msg), nil
}

func (w *AsyncFileWriter) Flush() error {
	if w.fd == nil {
		return nil
	}
	return w.fd.Sync()
}

func (w *AsyncFileWriter) flushAndClose() error {
	if w.fd == nil {
		return nil
	}
	if err := w.fd.Sync(); err != nil {
		return err
	}
	err := w.fd.Close()
	w.fd = nil
	return err
}

func (w *AsyncFileWriter) timeFilePath(filePath string) string {
	return filePath + "." + time.Now().Format("2006-01-02_15")
}
