package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// TestSetDefaultCustomLogger should properly set the default logger when
// custom loggers are provided.
func TestSetDefaultCustomLogger(t *testing.T) {
	type customLogger struct {
		Logger // Implement the Logger interface
	}
	prev := Root()
	defer SetDefault(prev)

	customLog := &customLogger{}
	SetDefault(customLog)
	if Root() != customLog {
		t.Error("expected custom logger to be set as default")
	}
}

func TestTerminalHandlerLevel(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandlerWithLevel(out, slog.LevelInfo, false))

	l.Debug("hidden")
	l.Info("decoded method", "class", "demo/Hello", "insts", 6)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "INFO "))
	assert.Contains(t, lines[0], "decoded method")
	assert.Contains(t, lines[0], "class=demo/Hello")
	assert.Contains(t, lines[0], "insts=6")
}

func TestTerminalHandlerOddArgs(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandler(out, false))
	l.Warn("odd", "key")
	assert.Contains(t, out.String(), errorKey)
}

func TestJSONHandler(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(JSONHandlerWithLevel(out, LevelTrace)).With("component", "analysis")
	l.Trace("visit", "inst", 3)

	s := out.String()
	assert.Contains(t, s, `"lvl":"trace"`)
	assert.Contains(t, s, `"component":"analysis"`)
	assert.Contains(t, s, `"inst":3`)
}

func TestLvlFromString(t *testing.T) {
	lvl, err := LvlFromString("dbug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	_, err = LvlFromString("loud")
	assert.Error(t, err)

	assert.Equal(t, LevelTrace, FromLegacyLevel(5))
	assert.Equal(t, LevelCrit, FromLegacyLevel(0))
	assert.Equal(t, slog.LevelInfo, FromLegacyLevel(3))
}

func TestEveryN(t *testing.T) {
	out := new(bytes.Buffer)
	prev := Root()
	defer SetDefault(prev)
	SetDefault(NewLogger(NewTerminalHandler(out, false)))

	filter := &EveryN{N: 3}
	for i := 0; i < 7; i++ {
		WarnBy(filter, "skipped path")
	}
	assert.Equal(t, 3, strings.Count(out.String(), "skipped path"))

	out.Reset()
	InfoIf(false, "never")
	InfoIf(true, "always")
	assert.NotContains(t, out.String(), "never")
	assert.Contains(t, out.String(), "always")
}
