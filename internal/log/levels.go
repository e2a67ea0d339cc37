// Package log configures structured logging for layered. It wraps log/slog
// and maps the -v=N flag onto slog levels.
package log

import "log/slog"

// LevelTrace is a custom level below Debug for per-revision walk output.
const LevelTrace = slog.Level(-8)

// Verbosity levels accepted by -v.
const (
	VerbosityError = 0 // Errors only (quiet)
	VerbosityWarn  = 1 // + Warnings (unpublished posts, odd commits)
	VerbosityInfo  = 2 // + Info (posts parsed, fallbacks to full runs)
	VerbosityDebug = 3 // + Debug (deltas, ignored paths, skipped commits)
	VerbosityTrace = 4 // + Trace (every revision visited)
)

// VerbosityToLevel maps -v=N to a slog level.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= VerbosityError:
		return slog.LevelError
	case v == VerbosityWarn:
		return slog.LevelWarn
	case v == VerbosityInfo:
		return slog.LevelInfo
	case v == VerbosityDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// LevelName returns the name for a level, including custom levels.
func LevelName(l slog.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.String()
}
