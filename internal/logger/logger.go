// Package logger is the process-wide structured log. Printf-style helpers
// over slog keep call sites terse; output and level are swappable at
// runtime for the session log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	minLevel slog.LevelVar
	active   atomic.Pointer[slog.Logger]
)

func init() {
	minLevel.Set(slog.LevelInfo)
	active.Store(build(os.Stdout))
}

func build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &minLevel}))
}

// SetOutput replaces the log destination, typically with a MultiWriter of
// stdout and the session log file.
func SetOutput(w io.Writer) {
	active.Store(build(w))
}

// SetLevel sets the minimum level by its config name. Unknown names fall
// back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		minLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		minLevel.Set(slog.LevelWarn)
	case "error":
		minLevel.Set(slog.LevelError)
	default:
		minLevel.Set(slog.LevelInfo)
	}
}

func Debugf(format string, v ...any) { active.Load().Debug(fmt.Sprintf(format, v...)) }

func Infof(format string, v ...any) { active.Load().Info(fmt.Sprintf(format, v...)) }

func Warnf(format string, v ...any) { active.Load().Warn(fmt.Sprintf(format, v...)) }

func Errorf(format string, v ...any) { active.Load().Error(fmt.Sprintf(format, v...)) }
