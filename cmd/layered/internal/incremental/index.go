package incremental

import (
	"time"
)

// IndexVersion is the current version of the index format.
const IndexVersion = 1

// Index represents a snapshot of the posts directory.
type Index struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	// Head is the branch tip the corpus was generated against. New commits
	// can move timestamps of unchanged files, so a different tip invalidates
	// the index.
	Head    string            `json:"head,omitempty"`
	Entries map[string]*Entry `json:"entries"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version:   IndexVersion,
		UpdatedAt: time.Now(),
		Entries:   make(map[string]*Entry),
	}
}

// Add adds or updates an entry.
func (idx *Index) Add(e *Entry) {
	if idx == nil || e == nil {
		return
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}
	idx.Entries[e.Name] = e
}

// Get retrieves an entry by filename.
func (idx *Index) Get(name string) (*Entry, bool) {
	if idx == nil || idx.Entries == nil {
		return nil, false
	}
	e, ok := idx.Entries[name]
	return e, ok
}

// Diff compares this index against another, returning changes.
// The receiver (idx) is the "old" state, other is the "new" state.
func (idx *Index) Diff(other *Index) *ChangeSet {
	var oldEntries, newEntries map[string]*Entry
	if idx != nil {
		oldEntries = idx.Entries
	}
	if other != nil {
		newEntries = other.Entries
	}
	return diffEntries(oldEntries, newEntries, func(_ string, e *Entry) (string, error) {
		return e.Hash, nil
	})
}

// diffEntries classifies names present in either map. Entries whose mtime
// and size match are unchanged without consulting hash; otherwise hash
// supplies the current content hash of the new entry.
func diffEntries(oldEntries, newEntries map[string]*Entry, hash func(name string, e *Entry) (string, error)) *ChangeSet {
	cs := NewChangeSet()

	for name, newEntry := range newEntries {
		oldEntry, exists := oldEntries[name]
		if !exists {
			cs.Added = append(cs.Added, name)
			continue
		}

		// Fast path: if mtime and size unchanged, skip hash comparison
		if oldEntry.ModTime == newEntry.ModTime && oldEntry.Size == newEntry.Size {
			continue
		}

		h, err := hash(name, newEntry)
		if err != nil || oldEntry.Hash != h {
			// If we can't hash, assume modified
			cs.Modified = append(cs.Modified, name)
		}
	}

	for name := range oldEntries {
		if _, exists := newEntries[name]; !exists {
			cs.Deleted = append(cs.Deleted, name)
		}
	}

	cs.sort()
	return cs
}
