package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CircuitCoder/layered/cmd/layered/internal/incremental"
	"github.com/CircuitCoder/layered/internal/log"
	"github.com/CircuitCoder/layered/pkg/config"
	"github.com/CircuitCoder/layered/pkg/post"
	"github.com/CircuitCoder/layered/pkg/provenance"
)

// project is a loaded configuration anchored at the repository root. Every
// relative path in the configuration is resolved against root.
type project struct {
	root string
	cfg  *config.Config
}

// loadProject loads the configuration for the working directory, or the
// --chdir directory when given.
func loadProject() (*project, error) {
	wd := globalFlags.chdir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
	}
	wd, err := filepath.Abs(wd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", wd, err)
	}
	if info, err := os.Stat(wd); err != nil {
		return nil, fmt.Errorf("invalid path %s: %w", wd, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", wd)
	}

	return &project{
		root: config.FindProjectRoot(wd),
		cfg:  config.LoadFrom(wd),
	}, nil
}

func (p *project) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

// override replaces a configured path with one given on the command line,
// which is relative to the working directory rather than the root.
func override(dst *string, flag string) error {
	if flag == "" {
		return nil
	}
	abs, err := filepath.Abs(flag)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", flag, err)
	}
	*dst = abs
	return nil
}

func (p *project) postsDir() string { return p.resolve(p.cfg.Posts.Dir) }

func (p *project) outputPath() string { return p.resolve(p.cfg.Output.Path) }

func (p *project) stateDir() string { return p.resolve(p.cfg.State.Dir) }

func (p *project) options() post.Options {
	return post.Options{
		Accept: p.cfg.IsPostFile,
		Walk:   []provenance.Option{provenance.WithSkipMarker(p.cfg.SkipMarker())},
		Logger: log.Component("post"),
	}
}

func (p *project) tracker() *incremental.Tracker {
	return incremental.NewTracker(p.stateDir(), p.postsDir(), p.cfg.IsPostFile)
}

// head returns the branch tip of the repository enclosing the posts
// directory, or "" before the first commit.
func (p *project) head() (string, error) {
	history, err := provenance.OpenGit(p.postsDir())
	if err != nil {
		return "", err
	}
	rev, ok, err := history.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch tip: %w", err)
	}
	if !ok {
		return "", nil
	}
	return rev.ID(), nil
}
