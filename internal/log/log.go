package log

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	logger    atomic.Pointer[slog.Logger]
	level     = new(slog.LevelVar)
	verbosity atomic.Int32
)

func init() {
	// Warnings only until Init runs
	SetVerbosity(VerbosityWarn)
	logger.Store(slog.New(NewHandler(HandlerOptions{Level: level})))
}

// Init installs the process-wide logger. It is called once per command,
// after flags and configuration are merged.
func Init(v int, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	SetVerbosity(v)

	l := slog.New(NewHandler(HandlerOptions{
		Level:  level,
		Format: f,
		Output: os.Stderr,
	}))
	logger.Store(l)
	slog.SetDefault(l)
	return nil
}

// SetVerbosity changes verbosity at runtime. Loggers already handed out
// follow the change.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	return logger.Load()
}

// Component returns a logger tagged with component name.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
