package log

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Package log is a thin facade over zerolog. Call sites pass a message and
// flat key-value pairs; the console writer renders them as key=value.

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu   sync.Mutex
	root *zerolog.Logger
)

func logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		zerolog.TimeFieldFormat = timeFormat
		zerolog.ErrorFieldName = "err"
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
		l := zerolog.New(cw).Level(zerolog.InfoLevel).With().Timestamp().Logger()
		root = &l
	}
	return root
}

// SetLevel adjusts the minimum level. Accepts "debug", "info", "warn",
// "error"; unknown values keep the current level.
func SetLevel(level string) {
	l := logger()
	var lvl zerolog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		return
	}
	mu.Lock()
	nl := l.Level(lvl)
	root = &nl
	mu.Unlock()
}

func Debug(msg string, kv ...any) {
	emit(logger().Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	emit(logger().Info(), msg, kv)
}

func Warn(msg string, kv ...any) {
	emit(logger().Warn(), msg, kv)
}

// Error logs msg with err attached, followed by optional key-value pairs.
func Error(msg string, err error, kv ...any) {
	emit(logger().Error().Err(err), msg, kv)
}

func emit(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	// An odd trailing argument is ignored.
	e.Msg(msg)
}
