package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classflow.log")

	w := NewAsyncFileWriter(path, 100, 0)
	require.NoError(t, w.Start())
	assert.Error(t, w.Start())

	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	w.Write([]byte("world\n"))
	w.Stop()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(content))

	target, err := os.Readlink(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(target), "classflow.log."))
}

func TestWriterStopWithoutStart(t *testing.T) {
	w := NewAsyncFileWriter(filepath.Join(t.TempDir(), "x.log"), 1, 2)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop blocked")
	}
}

func TestNextRotationHour(t *testing.T) {
	now := time.Date(2024, 1, 1, 23, 12, 0, 0, time.UTC)
	assert.Equal(t, 0, nextRotationHour(now, 1))
	assert.Equal(t, 1, nextRotationHour(now, 2))
}
