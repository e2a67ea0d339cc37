package post

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CircuitCoder/layered/internal/log"
	"github.com/CircuitCoder/layered/pkg/provenance"
)

// Options configures ReadDir and Refresh.
type Options struct {
	// Accept filters candidate filenames. Nil accepts every regular file.
	Accept func(name string) bool

	// Walk is passed to the history walker.
	Walk []provenance.Option

	// Now supplies the publish time of uncommitted posts. Defaults to
	// time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Component("post")
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) accept(name string) bool {
	return o.Accept == nil || o.Accept(name)
}

// ListDir returns the accepted regular files directly inside dir, sorted.
func ListDir(dir string, opts Options) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !opts.accept(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadDir parses every post in dir and enriches it with provenance from the
// enclosing repository. Files that cannot be read or parsed are logged and
// left out.
func ReadDir(dir string, opts Options) (map[string]*Post, error) {
	logger := opts.logger()

	names, err := ListDir(dir, opts)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]*Document, len(names))
	for _, name := range names {
		logger.Info("parsing", "file", name)
		doc, err := readDocument(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable post", "file", name, "error", err)
			continue
		}
		docs[name] = doc
	}

	return enrichAll(dir, docs, opts)
}

// Refresh re-reads the given paths and recomputes their provenance with a
// full history walk seeded by those files only. A nil value in the result
// means the file is gone or no longer parses and should be evicted.
func Refresh(dir string, paths []string, opts Options) (map[string]*Post, error) {
	logger := opts.logger()

	docs := make(map[string]*Document)
	var skipped []string
	for _, p := range paths {
		name := filepath.Base(p)
		if !opts.accept(name) {
			continue
		}
		doc, err := readDocument(p)
		if err != nil {
			logger.Info("unable to read file", "file", name, "error", err)
			skipped = append(skipped, name)
			continue
		}
		docs[name] = doc
	}

	result, err := enrichAll(dir, docs, opts)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		result[name] = nil
	}
	return result, nil
}

func readDocument(p string) (*Document, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, &fs.PathError{Op: "read", Path: p, Err: errors.New("not a regular file")}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return doc, nil
}

// enrichAll walks the history once for every parsed document and then
// enriches the documents in parallel. Each enrichment only reads its own
// record.
func enrichAll(dir string, docs map[string]*Document, opts Options) (map[string]*Post, error) {
	result := make(map[string]*Post, len(docs))
	if len(docs) == 0 {
		return result, nil
	}

	history, err := provenance.OpenGit(dir)
	if err != nil {
		return nil, err
	}

	logger := opts.logger()
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}

	store, err := provenance.NewWalker(history, history.Dir(), opts.Walk...).Run(names)
	if err != nil {
		return nil, err
	}

	now := opts.now()
	posts := make([]*Post, len(names))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			logger.Debug("processing", "file", name)
			rec, _ := store.Get(name)
			p, err := Enrich(name, docs[name], rec, now, logger)
			if err != nil {
				return err
			}
			posts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, name := range names {
		result[name] = posts[i]
	}
	return result, nil
}
