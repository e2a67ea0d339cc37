package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CircuitCoder/layered/internal/log"
)

// DefaultSkipMarker excludes a commit from timestamp contribution when it
// appears in the commit message.
const DefaultSkipMarker = "[skip time]"

var (
	// ErrRepositoryNotFound is returned when no repository encloses the
	// tracked directory.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrUnparsableTime is returned when a commit has no usable author time.
	ErrUnparsableTime = errors.New("unparsable author time")

	// ErrMissingLineage means a revision was visited before any of its
	// children, which the traversal order rules out.
	ErrMissingLineage = errors.New("revision visited without lineage")
)

// Walker derives provenance for files of one directory.
type Walker struct {
	history    History
	dir        string
	skipMarker string
	logger     *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithSkipMarker overrides DefaultSkipMarker. An empty marker disables
// skipping.
func WithSkipMarker(marker string) Option {
	return func(w *Walker) {
		w.skipMarker = marker
	}
}

// WithLogger sets the logger used for walk diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWalker creates a walker over h for the repository-relative directory
// dir.
func NewWalker(h History, dir string, opts ...Option) *Walker {
	w := &Walker{
		history:    h,
		dir:        cleanDir(dir),
		skipMarker: DefaultSkipMarker,
		logger:     log.Component("provenance"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run walks the whole history for the given current filenames and returns
// one record per name. Seeding with a subset gives the same records for that
// subset as seeding with every file; there is no shortcut through recent
// history because an old rename may still lead to one of the names.
func (w *Walker) Run(names []string) (*Store, error) {
	store := NewStore(names)

	plan, err := planTraversal(w.history)
	if err != nil {
		return nil, err
	}

	lineages := map[Revision]*Lineage{
		Live: IdentityLineage(names),
	}

	for _, rev := range plan.order {
		lineage, ok := lineages[rev]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingLineage, rev)
		}
		w.logger.Log(context.Background(), log.LevelTrace, "visiting revision", "rev", rev.String(), "tracked", lineage.Len())

		var info *CommitInfo
		if !rev.IsLive() {
			info = plan.commits[rev]
		}

		ts, timed, err := w.timestamp(rev, info)
		if err != nil {
			return nil, err
		}

		// Nothing older can resolve any name any more; the remaining
		// revisions only need their lineage, which would be empty too.
		if lineage.Len() == 0 {
			w.attach(lineages, plan.parents(rev), lineage)
			continue
		}

		changes, err := w.history.Changes(rev)
		if err != nil {
			return nil, fmt.Errorf("failed to diff %s: %w", rev, err)
		}

		derived := newLineageBuilder(lineage)
		for _, d := range Classify(changes, w.dir, w.logger) {
			current, ok := lineage.Resolve(d.Name)
			if !ok {
				w.logger.Debug("change not of interest", "rev", rev.String(), "name", d.Name)
				continue
			}
			w.logger.Debug("delta", "rev", rev.String(), "kind", d.Kind.String(),
				"old", d.OldName, "name", d.Name, "current", current)

			if timed && d.Kind != Unmodified {
				store.Observe(current, ts, d.ContentID)
			}

			switch d.Kind {
			case Renamed:
				w.logger.Info("detected rename", "rev", rev.String(), "from", d.OldName, "to", d.Name)
				derived.RecordRename(d.OldName, d.Name)
			case Added:
				derived.RecordAddition(d.Name)
			}
		}

		w.attach(lineages, plan.parents(rev), derived.Freeze())
	}

	return store, nil
}

// attach hands frozen to every parent that has no lineage yet. A parent
// reachable from several children keeps whichever lineage arrives first in
// traversal order; the other children's views of it are dropped rather than
// merged, so renames made on a side branch of a merge can be lost.
func (w *Walker) attach(lineages map[Revision]*Lineage, parents []Revision, frozen *Lineage) {
	for _, p := range parents {
		if _, ok := lineages[p]; ok {
			continue
		}
		lineages[p] = frozen
	}
}

// timestamp returns the author time a revision contributes, or timed=false
// for Live and for commits carrying the skip marker.
func (w *Walker) timestamp(rev Revision, info *CommitInfo) (time.Time, bool, error) {
	if rev.IsLive() {
		return time.Time{}, false, nil
	}
	if info.Message == "" {
		w.logger.Warn("commit without message", "rev", rev.String())
	} else if w.skipMarker != "" && strings.Contains(info.Message, w.skipMarker) {
		w.logger.Debug("skipping timestamp", "rev", rev.String(), "marker", w.skipMarker)
		return time.Time{}, false, nil
	}
	if info.Author.IsZero() {
		return time.Time{}, false, fmt.Errorf("%w: commit %s", ErrUnparsableTime, rev.ID())
	}
	return info.Author, true, nil
}
