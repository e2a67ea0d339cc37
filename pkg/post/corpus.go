package post

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Sorted returns the posts newest first. Posts published at the same
// instant are ordered by filename.
func Sorted(posts map[string]*Post) []*Post {
	out := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *Post) int {
		if c := b.Metadata.PublishTime.Compare(a.Metadata.PublishTime); c != 0 {
			return c
		}
		return strings.Compare(a.Filename, b.Filename)
	})
	return out
}

// Apply merges the result of Refresh into corpus. A nil update removes the
// entry. It reports whether corpus changed.
func Apply(corpus, updates map[string]*Post) bool {
	changed := false
	for name, p := range updates {
		if p == nil {
			if _, ok := corpus[name]; ok {
				delete(corpus, name)
				changed = true
			}
			continue
		}
		corpus[name] = p
		changed = true
	}
	return changed
}

// WriteJSON writes the corpus as a JSON array in Sorted order.
func WriteJSON(w io.Writer, posts map[string]*Post) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Sorted(posts)); err != nil {
		return fmt.Errorf("failed to encode corpus: %w", err)
	}
	return nil
}

// WriteFile writes the corpus to path atomically.
func WriteFile(path string, posts map[string]*Post) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, posts); err != nil {
		return err
	}

	// Write to temp file first so readers never see a partial corpus
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write temp output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	return nil
}

// ReadJSON loads a corpus previously written by WriteJSON, keyed by
// filename.
func ReadJSON(r io.Reader) (map[string]*Post, error) {
	var list []*Post
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	posts := make(map[string]*Post, len(list))
	for _, p := range list {
		if p == nil || p.Filename == "" {
			return nil, fmt.Errorf("corpus entry without filename")
		}
		posts[p.Filename] = p
	}
	return posts, nil
}

// ReadFile loads the corpus at path. The error wraps fs.ErrNotExist when no
// corpus has been written yet.
func ReadFile(path string) (map[string]*Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadJSON(f)
}
