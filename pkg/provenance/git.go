package provenance

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// exactRenames detects renames by identical blob only. Similarity matching
// pairs unrelated posts that share a template.
var exactRenames = &object.DiffTreeOptions{
	DetectRenames:    true,
	RenameScore:      100,
	OnlyExactRenames: true,
}

// GitHistory is a History backed by a git repository on disk.
type GitHistory struct {
	repo *git.Repository
	fs   billy.Filesystem
	dir  string

	commits map[plumbing.Hash]*object.Commit
}

// OpenGit discovers the repository enclosing the directory at p.
func OpenGit(p string) (*GitHistory, error) {
	abs, err := canonical(p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, p)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}

	root, err := canonical(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve worktree root: %w", err)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrRepositoryNotFound, abs, root)
	}

	return &GitHistory{
		repo:    repo,
		fs:      wt.Filesystem,
		dir:     cleanDir(filepath.ToSlash(rel)),
		commits: make(map[plumbing.Hash]*object.Commit),
	}, nil
}

// Dir returns the tracked directory relative to the repository root.
func (g *GitHistory) Dir() string {
	return g.dir
}

// Root returns the worktree root on disk.
func (g *GitHistory) Root() string {
	return g.fs.Root()
}

// Head implements History.
func (g *GitHistory) Head() (Revision, bool, error) {
	ref, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Live, false, nil
	}
	if err != nil {
		return Live, false, err
	}
	return Committed(ref.Hash().String()), true, nil
}

// Commit implements History.
func (g *GitHistory) Commit(rev Revision) (*CommitInfo, error) {
	c, err := g.commit(rev)
	if err != nil {
		return nil, err
	}

	parents := make([]Revision, len(c.ParentHashes))
	for i, h := range c.ParentHashes {
		parents[i] = Committed(h.String())
	}

	return &CommitInfo{
		Parents:   parents,
		Author:    c.Author.When,
		Committer: c.Committer.When,
		Message:   c.Message,
	}, nil
}

// Changes implements History.
func (g *GitHistory) Changes(rev Revision) ([]Change, error) {
	if rev.IsLive() {
		return g.liveChanges()
	}

	c, err := g.commit(rev)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", rev, err)
	}

	base := &object.Tree{}
	if len(c.ParentHashes) > 0 {
		parent, err := g.commit(Committed(c.ParentHashes[0].String()))
		if err != nil {
			return nil, err
		}
		if base, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("failed to read tree of %s: %w", parent.Hash, err)
		}
	}

	diff, err := object.DiffTreeWithOptions(context.Background(), base, tree, exactRenames)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	changes := make([]Change, 0, len(diff))
	for _, ch := range diff {
		converted, err := convertChange(ch)
		if err != nil {
			return nil, err
		}
		changes = append(changes, converted)
	}
	return changes, nil
}

func (g *GitHistory) commit(rev Revision) (*object.Commit, error) {
	h := plumbing.NewHash(rev.ID())
	if c, ok := g.commits[h]; ok {
		return c, nil
	}
	c, err := g.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", rev, err)
	}
	g.commits[h] = c
	return c, nil
}

func convertChange(ch *object.Change) (Change, error) {
	action, err := ch.Action()
	if err != nil {
		return Change{}, fmt.Errorf("failed to classify change: %w", err)
	}

	switch action {
	case merkletrie.Insert:
		return Change{Kind: Added, NewPath: ch.To.Name, ContentID: ch.To.TreeEntry.Hash.String()}, nil
	case merkletrie.Delete:
		return Change{Kind: Deleted, OldPath: ch.From.Name, ContentID: ch.From.TreeEntry.Hash.String()}, nil
	}

	kind := Modified
	if ch.From.Name != ch.To.Name {
		kind = Renamed
	}
	return Change{
		Kind:      kind,
		OldPath:   ch.From.Name,
		NewPath:   ch.To.Name,
		ContentID: ch.To.TreeEntry.Hash.String(),
	}, nil
}

// liveChanges diffs the tracked directory of the branch tip against the
// working tree. Only direct children are compared; anything deeper would be
// dropped by Classify anyway.
func (g *GitHistory) liveChanges() ([]Change, error) {
	committed, err := g.committedFiles()
	if err != nil {
		return nil, err
	}
	working, err := g.workingFiles(committed)
	if err != nil {
		return nil, err
	}
	return diffSnapshots(g.dir, committed, working), nil
}

// committedFiles lists the blobs directly inside the tracked directory at
// the branch tip.
func (g *GitHistory) committedFiles() (map[string]string, error) {
	files := make(map[string]string)

	head, ok, err := g.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve branch tip: %w", err)
	}
	if !ok {
		return files, nil
	}

	c, err := g.commit(head)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", head, err)
	}

	if g.dir != "" {
		tree, err = tree.Tree(g.dir)
		if errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s at %s: %w", g.dir, head, err)
		}
	}

	for _, e := range tree.Entries {
		if e.Mode.IsFile() {
			files[e.Name] = e.Hash.String()
		}
	}
	return files, nil
}

// workingFiles hashes the regular files directly inside the tracked
// directory of the working tree. Ignored files are skipped unless they are
// already tracked.
func (g *GitHistory) workingFiles(tracked map[string]string) (map[string]string, error) {
	files := make(map[string]string)

	dir := g.dir
	if dir == "" {
		dir = "."
	}
	infos, err := g.fs.ReadDir(dir)
	if os.IsNotExist(err) {
		return files, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list working tree: %w", err)
	}

	patterns, err := gitignore.ReadPatterns(g.fs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore patterns: %w", err)
	}
	matcher := gitignore.NewMatcher(patterns)

	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		name := fi.Name()
		full := path.Join(g.dir, name)

		if _, ok := tracked[name]; !ok && matcher.Match(strings.Split(full, "/"), false) {
			continue
		}

		data, err := billyutil.ReadFile(g.fs, full)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", full, err)
		}
		files[name] = plumbing.ComputeHash(plumbing.BlobObject, data).String()
	}
	return files, nil
}

// diffSnapshots compares two name -> blob listings of dir and pairs
// deletions with additions of the identical blob as renames.
func diffSnapshots(dir string, before, after map[string]string) []Change {
	var changes, added []Change
	deleted := make(map[string][]string) // blob -> old names

	for _, name := range slices.Sorted(maps.Keys(after)) {
		blob := after[name]
		old, ok := before[name]
		switch {
		case !ok:
			added = append(added, Change{Kind: Added, NewPath: path.Join(dir, name), ContentID: blob})
		case old != blob:
			changes = append(changes, Change{
				Kind:      Modified,
				OldPath:   path.Join(dir, name),
				NewPath:   path.Join(dir, name),
				ContentID: blob,
			})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(before)) {
		if _, ok := after[name]; !ok {
			deleted[before[name]] = append(deleted[before[name]], name)
		}
	}

	for _, a := range added {
		olds := deleted[a.ContentID]
		if len(olds) == 0 {
			changes = append(changes, a)
			continue
		}
		deleted[a.ContentID] = olds[1:]
		a.Kind = Renamed
		a.OldPath = path.Join(dir, olds[0])
		changes = append(changes, a)
	}

	for blob, olds := range deleted {
		for _, name := range olds {
			changes = append(changes, Change{Kind: Deleted, OldPath: path.Join(dir, name), ContentID: blob})
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return strings.Compare(a.NewPath+"\x00"+a.OldPath, b.NewPath+"\x00"+b.OldPath)
	})
	return changes
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
