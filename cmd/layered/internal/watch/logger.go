package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger handles watch mode output formatting.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	statsMu sync.Mutex
	stats   WatchStats
}

// WatchStats tracks statistics for the watch session.
type WatchStats struct {
	WriteCount int
	ErrorCount int
	StartTime  time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: WatchStats{
			StartTime: time.Now(),
		},
	}
}

// Ready logs the initial ready message.
func (l *Logger) Ready(postCount int, dir string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"posts": postCount,
			"path":  dir,
		})
		return
	}

	l.printf("layered: watching %d posts in %s\n", postCount, dir)
	l.println("layered: ready")
	l.println()
}

// FileChanged logs a file change event.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Refreshing logs that a refresh of the given files is starting.
func (l *Logger) Refreshing(files []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "refreshing",
			"files": files,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	if len(files) == 1 {
		l.printf("[%s] refreshing %s...\n", l.timestamp(), files[0])
	} else {
		l.printf("[%s] refreshing %d posts...\n", l.timestamp(), len(files))
	}
}

// PostChanged logs one entry of a refresh result. A removed post is one
// that was deleted or no longer parses.
func (l *Logger) PostChanged(file string, removed bool) {
	change := ChangeModified
	verb := "updated"
	if removed {
		change = ChangeDeleted
		verb = "removed"
	}

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "post_" + verb,
			"file":  file,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	l.printf("[%s] %s %s %s\n", l.timestamp(), l.colorize(string(change), change), file, verb)
}

// Written logs that the corpus was written.
func (l *Logger) Written(output string, postCount int) {
	l.statsMu.Lock()
	l.stats.WriteCount++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "written",
			"output": output,
			"posts":  postCount,
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	checkmark := l.colorize("✓", ChangeAdded)
	l.printf("[%s] %s wrote %d posts to %s\n", l.timestamp(), checkmark, postCount, output)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.statsMu.Lock()
	l.stats.ErrorCount++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "shutdown",
			"writes":   stats.WriteCount,
			"errors":   stats.ErrorCount,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}

	l.println()
	l.printf("layered: shutting down (%d writes, %d errors)\n",
		stats.WriteCount, stats.ErrorCount)
}

// Stats returns the current watch statistics.
func (l *Logger) Stats() WatchStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m" // green
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// printf and println drop write errors; the output is informational.
func (l *Logger) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	_, _ = fmt.Fprintln(l.writer, args...)
}
