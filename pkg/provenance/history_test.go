package provenance

import (
	"fmt"
	"time"
)

// fakeHistory is an in-memory History for exercising merge shapes that are
// tedious to build with a real repository.
type fakeHistory struct {
	head    string
	commits map[string]*fakeCommit
	live    []Change
}

type fakeCommit struct {
	parents []string
	author  time.Time
	commit  time.Time
	message string
	changes []Change
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{commits: make(map[string]*fakeCommit)}
}

// add records a commit and moves the branch tip to it.
func (f *fakeHistory) add(id string, parents []string, at time.Time, changes ...Change) *fakeCommit {
	c := &fakeCommit{
		parents: parents,
		author:  at,
		commit:  at,
		message: "commit " + id,
		changes: changes,
	}
	f.commits[id] = c
	f.head = id
	return c
}

func (f *fakeHistory) Head() (Revision, bool, error) {
	if f.head == "" {
		return Live, false, nil
	}
	return Committed(f.head), true, nil
}

func (f *fakeHistory) Commit(rev Revision) (*CommitInfo, error) {
	c, ok := f.commits[rev.ID()]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", rev.ID())
	}
	parents := make([]Revision, len(c.parents))
	for i, p := range c.parents {
		parents[i] = Committed(p)
	}
	return &CommitInfo{
		Parents:   parents,
		Author:    c.author,
		Committer: c.commit,
		Message:   c.message,
	}, nil
}

func (f *fakeHistory) Changes(rev Revision) ([]Change, error) {
	if rev.IsLive() {
		return f.live, nil
	}
	c, ok := f.commits[rev.ID()]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", rev.ID())
	}
	return c.changes, nil
}

func added(p, blob string) Change {
	return Change{Kind: Added, NewPath: p, ContentID: blob}
}

func modified(p, blob string) Change {
	return Change{Kind: Modified, OldPath: p, NewPath: p, ContentID: blob}
}

func renamed(from, to, blob string) Change {
	return Change{Kind: Renamed, OldPath: from, NewPath: to, ContentID: blob}
}

func deleted(p, blob string) Change {
	return Change{Kind: Deleted, OldPath: p, ContentID: blob}
}

// day returns noon UTC on the given day of January 2024.
func day(n int) time.Time {
	return time.Date(2024, time.January, n, 12, 0, 0, 0, time.UTC)
}
