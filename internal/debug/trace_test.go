package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTrace(t *testing.T) {
	h := new(HandlerT)
	assert.Error(t, h.StopGoTrace())
	h.StartRegionAuto("idle")()

	file := filepath.Join(t.TempDir(), "classflow.trace")
	require.NoError(t, h.StartGoTrace(file))
	assert.True(t, h.Tracing())
	assert.Error(t, h.StartGoTrace(file))

	end := h.StartRegionAuto("work")
	end()

	require.NoError(t, h.StopGoTrace())
	assert.False(t, h.Tracing())
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestValidateLogLocation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	require.NoError(t, validateLogLocation(dir))
	_, err := os.Stat(filepath.Join(dir, "tmp"))
	assert.True(t, os.IsNotExist(err))
}
