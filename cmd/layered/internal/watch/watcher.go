package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CircuitCoder/layered/pkg/post"
)

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 200 * time.Millisecond

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")

// Config configures the watcher.
type Config struct {
	// PostsDir is watched non-recursively; only direct children are posts.
	PostsDir string
	Output   string
	Debounce time.Duration
	Options  post.Options

	// AfterWrite runs after every successful corpus write.
	AfterWrite func(ctx context.Context) error

	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// Watcher keeps a corpus in memory and rewrites it when posts change.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *Logger

	// refreshMu serializes refreshes; each one walks the working tree.
	refreshMu sync.Mutex
	corpus    map[string]*post.Post

	refresh func(dir string, paths []string, opts post.Options) (map[string]*post.Post, error)
	write   func(path string, posts map[string]*post.Post) error
}

// New creates a watcher starting from corpus, which it takes ownership of.
func New(cfg Config, corpus map[string]*post.Post) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if corpus == nil {
		corpus = make(map[string]*post.Post)
	}

	return &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Writer,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
		corpus:  corpus,
		refresh: post.Refresh,
		write:   post.WriteFile,
	}, nil
}

// Run starts the watch loop. It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	window := w.config.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, func(paths []string) {
		w.handleChangedPaths(ctx, paths)
	})
	defer w.debouncer.Stop()

	if err := w.fsWatcher.Add(w.config.PostsDir); err != nil {
		if isWatchLimitError(err) {
			return fmt.Errorf("%w for %s: %v\n"+
				"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288",
				ErrWatchLimitReached, w.config.PostsDir, err)
		}
		return fmt.Errorf("failed to watch %s: %w", w.config.PostsDir, err)
	}

	w.logger.Ready(w.postCount(), w.config.PostsDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// classify maps an event to a change type, or reports false for events that
// cannot alter a post.
func classify(event fsnotify.Event) (ChangeType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return ChangeAdded, true
	case event.Has(fsnotify.Write):
		return ChangeModified, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return ChangeDeleted, true
	}
	// Chmod only
	return "", false
}

// handleEvent filters a filesystem event down to post files and queues it.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	change, ok := classify(event)
	if !ok {
		return
	}

	path := event.Name
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(w.config.PostsDir) {
		return
	}
	name := filepath.Base(path)
	if w.config.Options.Accept != nil && !w.config.Options.Accept(name) {
		return
	}
	// A path that still exists must be a regular file; a vanished one is
	// passed on so the refresh can evict it.
	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return
	}

	w.logger.FileChanged(name, change)
	w.debouncer.Add(path)
}

// handleChangedPaths is called when the debouncer flushes.
func (w *Watcher) handleChangedPaths(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}

	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	w.logger.Refreshing(names)

	updates, err := w.refresh(w.config.PostsDir, paths, w.config.Options)
	if err != nil {
		w.logger.Error(fmt.Errorf("refresh failed: %w", err))
		return
	}

	for _, name := range names {
		p, ok := updates[name]
		if !ok {
			continue
		}
		if _, known := w.corpus[name]; p == nil && !known {
			continue
		}
		w.logger.PostChanged(name, p == nil)
	}

	if !post.Apply(w.corpus, updates) {
		return
	}

	if err := w.write(w.config.Output, w.corpus); err != nil {
		w.logger.Error(err)
		return
	}
	w.logger.Written(w.config.Output, len(w.corpus))

	if w.config.AfterWrite != nil {
		if err := w.config.AfterWrite(ctx); err != nil {
			w.logger.Error(fmt.Errorf("failed to update state: %w", err))
		}
	}
}

func (w *Watcher) postCount() int {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()
	return len(w.corpus)
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
