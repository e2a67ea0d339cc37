package incremental

import (
	"context"
	"os"
	"path/filepath"
)

// ScanConfig configures the scanner.
type ScanConfig struct {
	// Dir is the posts directory. Only its direct children are scanned.
	Dir string

	// Accept filters filenames. Nil accepts every regular file.
	Accept func(name string) bool
}

// Scanner builds an Index from the posts directory.
type Scanner struct {
	dir    string
	accept func(name string) bool
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScanConfig) *Scanner {
	accept := cfg.Accept
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Scanner{
		dir:    cfg.Dir,
		accept: accept,
	}
}

// Scan lists the posts directory and hashes every accepted file.
func (s *Scanner) Scan(ctx context.Context) (*Index, error) {
	return s.scan(ctx, true)
}

// ScanFast lists the posts directory recording only mtime and size.
// This is useful for quickly detecting whether hashing is needed.
func (s *Scanner) ScanFast(ctx context.Context) (*Index, error) {
	return s.scan(ctx, false)
}

func (s *Scanner) scan(ctx context.Context, hash bool) (*Index, error) {
	idx := NewIndex()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}

	for _, d := range entries {
		// Check context cancellation
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !d.Type().IsRegular() || !s.accept(d.Name()) {
			continue
		}

		info, err := d.Info()
		if os.IsNotExist(err) {
			// Removed since the listing
			continue
		}
		if err != nil {
			return nil, err
		}

		entry := &Entry{
			Name:    d.Name(),
			ModTime: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}
		if hash {
			if entry.Hash, err = HashFile(filepath.Join(s.dir, d.Name())); err != nil {
				return nil, err
			}
		}

		idx.Add(entry)
	}

	return idx, nil
}
