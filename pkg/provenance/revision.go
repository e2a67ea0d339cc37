// Package provenance derives creation and last-update timestamps for the
// files of one directory from the version-control history that contains it.
//
// The walk visits the live working tree first and then every commit
// reachable from the branch tip, children before parents. While walking it
// keeps, per revision, a lineage that maps the name a file had at that
// revision to the name it is known by today, so renames are followed back
// to the commit that first introduced the content.
package provenance

import "time"

// Revision is a point in history whose changes can be diffed against its
// first parent. The zero value is the live, uncommitted working tree.
type Revision struct {
	id string
}

// Live is the synthetic revision for the uncommitted working tree.
var Live = Revision{}

// Committed returns the revision for the commit with the given id.
func Committed(id string) Revision {
	return Revision{id: id}
}

// IsLive reports whether r is the working tree.
func (r Revision) IsLive() bool {
	return r.id == ""
}

// ID returns the commit id, or "" for the live revision.
func (r Revision) ID() string {
	return r.id
}

func (r Revision) String() string {
	if r.IsLive() {
		return "live"
	}
	if len(r.id) > 12 {
		return r.id[:12]
	}
	return r.id
}

// CommitInfo is what the walk needs to know about a committed revision.
type CommitInfo struct {
	// Parents in recorded order; the first parent is the diff base.
	Parents []Revision
	// Author is the author time with its recorded timezone offset.
	Author time.Time
	// Committer orders otherwise unrelated revisions during traversal.
	Committer time.Time
	Message   string
}

// ChangeKind classifies one file-level effect of a revision.
type ChangeKind int

const (
	Unmodified ChangeKind = iota
	Added
	Modified
	Renamed
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	default:
		return "unmodified"
	}
}

// Change is a raw file change with repository-relative, slash-separated
// paths. OldPath is empty for additions, NewPath is empty for deletions.
type Change struct {
	Kind      ChangeKind
	OldPath   string
	NewPath   string
	ContentID string
}

// History is the version-control view the walk runs against.
type History interface {
	// Head returns the branch tip, or ok=false for a repository without
	// commits.
	Head() (rev Revision, ok bool, err error)
	// Commit describes a committed revision.
	Commit(rev Revision) (*CommitInfo, error)
	// Changes diffs rev against its first parent (an empty tree for root
	// commits). For Live it diffs the branch tip against the working tree,
	// untracked files included.
	Changes(rev Revision) ([]Change, error)
}
