package provenance

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// traversal is the visiting order of one walk together with the commit
// metadata loaded while discovering it.
type traversal struct {
	order   []Revision
	commits map[Revision]*CommitInfo
	// tip holds the parent of Live: the branch tip, if any.
	tip []Revision
}

// planTraversal orders Live and every commit reachable from the branch tip
// so that each revision comes after all of its children.
//
// The order is computed here rather than taken from a library's log
// iterator: a time-sorted log lets a commit with a skewed clock overtake one
// of its children, which would hand a parent a lineage before that child's
// renames were folded in. Kahn's algorithm guarantees the child-first
// property; among ready revisions the newest committer time goes first, then
// the smallest id, so the order is deterministic.
func planTraversal(h History) (*traversal, error) {
	t := &traversal{
		order:   []Revision{Live},
		commits: make(map[Revision]*CommitInfo),
	}

	head, ok, err := h.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch tip: %w", err)
	}
	if !ok {
		return t, nil
	}
	t.tip = []Revision{head}

	// Discover the reachable graph with an explicit work list; histories can
	// be far deeper than a goroutine stack should be.
	pending := make(map[Revision]int)
	stack := []Revision{head}
	seen := map[Revision]bool{head: true}
	for len(stack) > 0 {
		rev := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		info, err := h.Commit(rev)
		if err != nil {
			return nil, fmt.Errorf("failed to load commit %s: %w", rev, err)
		}
		t.commits[rev] = info

		for _, p := range info.Parents {
			pending[p]++
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}

	ready := priorityqueue.NewWith(func(a, b any) int {
		return compareReady(t.commits, a.(Revision), b.(Revision))
	})
	ready.Enqueue(head)

	for !ready.Empty() {
		v, _ := ready.Dequeue()
		rev := v.(Revision)
		t.order = append(t.order, rev)

		for _, p := range t.commits[rev].Parents {
			pending[p]--
			if pending[p] == 0 {
				ready.Enqueue(p)
			}
		}
	}

	if len(t.order)-1 != len(t.commits) {
		return nil, fmt.Errorf("history graph is not acyclic: ordered %d of %d commits",
			len(t.order)-1, len(t.commits))
	}
	return t, nil
}

func (t *traversal) parents(rev Revision) []Revision {
	if rev.IsLive() {
		return t.tip
	}
	return t.commits[rev].Parents
}

// compareReady sorts newer committer times first, then ids ascending.
func compareReady(commits map[Revision]*CommitInfo, a, b Revision) int {
	ta, tb := commits[a].Committer, commits[b].Committer
	switch {
	case ta.After(tb):
		return -1
	case ta.Before(tb):
		return 1
	}
	return strings.Compare(a.ID(), b.ID())
}
