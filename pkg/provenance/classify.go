package provenance

import (
	"log/slog"
	"path"
	"strings"
)

// Delta is a change restricted to the tracked directory. Names are base
// names relative to that directory.
type Delta struct {
	Kind ChangeKind
	// OldName is set only for renames whose source is itself a direct child
	// of the tracked directory.
	OldName   string
	Name      string
	ContentID string
}

// Classify filters raw changes down to direct children of dir and degrades
// renames whose source is not observable inside dir to additions.
// dir is repository-relative and slash-separated; "" or "." is the root.
func Classify(changes []Change, dir string, logger *slog.Logger) []Delta {
	dir = cleanDir(dir)
	deltas := make([]Delta, 0, len(changes))

	for _, c := range changes {
		// Deleted files cannot be of interest; they carry no new path.
		if c.Kind == Deleted || c.NewPath == "" {
			continue
		}

		rel, ok := relativeTo(c.NewPath, dir)
		if !ok {
			continue
		}
		if strings.Contains(rel, "/") {
			logger.Debug("ignoring non-direct child", "path", c.NewPath)
			continue
		}

		d := Delta{
			Kind:      c.Kind,
			Name:      rel,
			ContentID: c.ContentID,
		}

		if c.Kind == Renamed {
			oldRel, ok := relativeTo(c.OldPath, dir)
			if ok && !strings.Contains(oldRel, "/") {
				d.OldName = oldRel
			} else {
				d.Kind = Added
			}
		}

		deltas = append(deltas, d)
	}

	return deltas
}

// relativeTo returns p relative to dir, or ok=false when p is not below dir.
func relativeTo(p, dir string) (string, bool) {
	if p == "" {
		return "", false
	}
	if dir == "" {
		return p, true
	}
	rest, found := strings.CutPrefix(p, dir+"/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

func cleanDir(dir string) string {
	dir = path.Clean(strings.ReplaceAll(dir, "\\", "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.Trim(dir, "/")
}
