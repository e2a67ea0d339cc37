package incremental

import (
	"context"
	"fmt"
	"path/filepath"
)

// Tracker provides high-level incremental update tracking.
type Tracker struct {
	store   Store
	scanner *Scanner
	dir     string
}

// NewTracker creates a tracker for the posts in postsDir, keeping its state
// in stateDir.
func NewTracker(stateDir, postsDir string, accept func(name string) bool) *Tracker {
	return &Tracker{
		store:   NewJSONStore(stateDir),
		scanner: NewScanner(ScanConfig{Dir: postsDir, Accept: accept}),
		dir:     postsDir,
	}
}

// Status checks for changes without modifying state.
// Returns a ChangeSet describing what has changed since the last Refresh.
func (t *Tracker) Status(ctx context.Context) (*ChangeSet, error) {
	oldIdx, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	// Scan current state - use fast scan first
	fastIdx, err := t.scanner.ScanFast(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan posts: %w", err)
	}

	// Hash only files whose mtime or size moved
	return diffEntries(oldIdx.Entries, fastIdx.Entries, func(name string, _ *Entry) (string, error) {
		return HashFile(filepath.Join(t.dir, name))
	}), nil
}

// Head returns the branch tip recorded by the last Refresh, or "" when
// there is none.
func (t *Tracker) Head() (string, error) {
	idx, err := t.store.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load state: %w", err)
	}
	return idx.Head, nil
}

// Refresh updates the stored index from current disk state and records
// head as the branch tip it corresponds to.
func (t *Tracker) Refresh(ctx context.Context, head string) error {
	idx, err := t.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan posts: %w", err)
	}
	idx.Head = head

	if err := t.store.Save(idx); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// Reset discards the stored state.
func (t *Tracker) Reset() error {
	return t.store.Clear()
}

// HasState returns true if a previous state exists.
func (t *Tracker) HasState() bool {
	return t.store.Exists()
}

// TrackedFileCount returns the number of files in the current stored index.
// Returns 0 if no state exists or on error.
func (t *Tracker) TrackedFileCount() int {
	idx, err := t.store.Load()
	if err != nil {
		return 0
	}
	if idx == nil || idx.Entries == nil {
		return 0
	}
	return len(idx.Entries)
}
