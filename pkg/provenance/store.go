package provenance

import (
	"maps"
	"slices"
	"time"
)

// Record holds what the walk learned about one current file.
type Record struct {
	// Created is the earliest observed timestamp, nil if never committed.
	Created *time.Time
	// Updated is the first (most recent) observed timestamp.
	Updated *time.Time
	// CreatedContent is the blob id introduced at Created.
	CreatedContent string
	// UpdatedContent is the blob id observed at Updated.
	UpdatedContent string
}

// LastUpdate returns Updated unless the file still has the content it was
// created with, in which case there is no update distinct from creation.
func (r Record) LastUpdate() *time.Time {
	if r.Updated == nil {
		return nil
	}
	if r.UpdatedContent == r.CreatedContent {
		return nil
	}
	return r.Updated
}

// Store maps current filenames to their records. Its keys are fixed when it
// is seeded.
type Store struct {
	records map[string]*Record
}

// NewStore seeds an empty record for each name.
func NewStore(names []string) *Store {
	records := make(map[string]*Record, len(names))
	for _, n := range names {
		records[n] = &Record{}
	}
	return &Store{records: records}
}

// Observe refines the record of name with a change seen at ts. Observations
// must arrive newest revision first.
func (s *Store) Observe(name string, ts time.Time, contentID string) bool {
	r, ok := s.records[name]
	if !ok {
		return false
	}

	if r.Updated == nil {
		t := ts
		r.Updated = &t
		r.UpdatedContent = contentID
	}

	if r.Created == nil || ts.Before(*r.Created) {
		t := ts
		r.Created = &t
		r.CreatedContent = contentID
	}
	return true
}

// Get returns a copy of the record for name.
func (s *Store) Get(name string) (Record, bool) {
	r, ok := s.records[name]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Names returns the seeded filenames in sorted order.
func (s *Store) Names() []string {
	return slices.Sorted(maps.Keys(s.records))
}

// Len returns the number of seeded filenames.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of every record keyed by filename.
func (s *Store) Records() map[string]Record {
	out := make(map[string]Record, len(s.records))
	for name, r := range s.records {
		out[name] = *r
	}
	return out
}
