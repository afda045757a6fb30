package log

import (
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// LoggerFilter decides whether a rate-limited log call is emitted.
type LoggerFilter interface {
	check() bool
}

// EveryN lets through one call out of every N. A nil or zero EveryN lets
// everything through.
type EveryN struct {
	N       uint32
	counter uint32
}

func (e *EveryN) check() bool {
	if e == nil || e.N == 0 {
		return true
	}
	return atomic.AddUint32(&e.counter, 1)%e.N == 1%e.N
}

var _ LoggerFilter = &EveryN{}

type ifCondition bool

func (c ifCondition) check() bool { return bool(c) }

func writeBy(filter LoggerFilter, level slog.Level, msg string, ctx []interface{}) {
	if filter == nil || filter.check() {
		Root().Write(level, msg, ctx...)
	}
}

// WarnBy logs at warn level when filter lets the call through.
func WarnBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	writeBy(filter, slog.LevelWarn, msg, ctx)
}

// InfoIf logs at info level when condition holds.
func InfoIf(condition bool, msg string, ctx ...interface{}) {
	writeBy(ifCondition(condition), slog.LevelInfo, msg, ctx)
}
