package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CircuitCoder/layered/pkg/post"
	"github.com/CircuitCoder/layered/pkg/provenance"
)

var (
	t1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t4 = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
)

const (
	first  = "2024-01-01-first.md"
	second = "2024-02-01-second.md"
)

// site is a blog repository on disk.
type site struct {
	t    *testing.T
	root string
	wt   *git.Worktree
}

// newSite creates a repository where first is committed at t1, second at
// t2, and first is edited at t3.
func newSite(t *testing.T) *site {
	t.Helper()

	// Keep the user's global config out of the way
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "posts"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := &site{t: t, root: root, wt: wt}
	s.write(first, "First")
	s.commit("add first", t1, first)
	s.write(second, "Second")
	s.commit("add second", t2, second)
	s.write(first, "First, revised")
	s.commit("revise first", t3, first)
	return s
}

func (s *site) path(name string) string {
	return filepath.Join(s.root, "posts", name)
}

func (s *site) write(name, title string) {
	s.t.Helper()
	content := "---\ntitle: " + title + "\n---\n\nBody of " + name + "\n"
	if err := os.WriteFile(s.path(name), []byte(content), 0o644); err != nil {
		s.t.Fatal(err)
	}
}

func (s *site) commit(msg string, at time.Time, names ...string) {
	s.t.Helper()
	for _, name := range names {
		if _, err := s.wt.Add("posts/" + name); err != nil {
			s.t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	sig := &object.Signature{Name: "Writer", Email: "writer@example.com", When: at}
	if _, err := s.wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
		s.t.Fatalf("Commit() error = %v", err)
	}
}

func (s *site) corpus() map[string]*post.Post {
	s.t.Helper()
	corpus, err := post.ReadFile(filepath.Join(s.root, "out.json"))
	if err != nil {
		s.t.Fatalf("ReadFile() error = %v", err)
	}
	return corpus
}

// run executes the CLI in the site root.
func (s *site) run(args ...string) (string, error) {
	s.t.Helper()
	return execute(s.t, append([]string{"-C", s.root, "-v", "0"}, args...)...)
}

func (s *site) mustRun(args ...string) string {
	s.t.Helper()
	out, err := s.run(args...)
	if err != nil {
		s.t.Fatalf("%v error = %v\n%s", args, err, out)
	}
	return out
}

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	resetFlags(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default. Flag values live in
// package variables and would otherwise leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func assertTime(t *testing.T, label string, got *time.Time, want time.Time) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", label, want)
		return
	}
	if !got.Equal(want) {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "layered "+Version) {
		t.Errorf("version output = %q", out)
	}
}

func TestGen(t *testing.T) {
	s := newSite(t)

	out := s.mustRun("gen")
	if !strings.Contains(out, "Wrote 2 posts") {
		t.Errorf("gen output = %q", out)
	}

	corpus := s.corpus()
	if len(corpus) != 2 {
		t.Fatalf("corpus has %d posts, want 2", len(corpus))
	}

	a := corpus[first].Metadata
	if a.Title != "First, revised" {
		t.Errorf("title = %q", a.Title)
	}
	assertTime(t, "first publish", &a.PublishTime, t1)
	assertTime(t, "first update", a.UpdateTime, t3)

	b := corpus[second].Metadata
	assertTime(t, "second publish", &b.PublishTime, t2)
	if b.UpdateTime != nil {
		t.Errorf("second update = %v, want nil", b.UpdateTime)
	}

	if _, err := os.Stat(filepath.Join(s.root, ".layered", "state.json")); err != nil {
		t.Errorf("expected state to be saved: %v", err)
	}
}

func TestGenOutputFlag(t *testing.T) {
	s := newSite(t)
	output := filepath.Join(t.TempDir(), "site", "posts.json")

	s.mustRun("gen", "--output", output)

	corpus, err := post.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(corpus) != 2 {
		t.Errorf("corpus has %d posts, want 2", len(corpus))
	}
	if _, err := os.Stat(filepath.Join(s.root, "out.json")); !os.IsNotExist(err) {
		t.Errorf("configured output should not be written, stat error = %v", err)
	}
}

func TestGenIncremental(t *testing.T) {
	s := newSite(t)

	// Without state the run is a full one
	out := s.mustRun("gen", "--incremental")
	if !strings.Contains(out, "Wrote 2 posts") || strings.Contains(out, "changed") {
		t.Errorf("first incremental gen output = %q", out)
	}

	out = s.mustRun("gen", "--incremental")
	if !strings.Contains(out, "up to date") {
		t.Errorf("unchanged gen output = %q", out)
	}

	s.write(second, "Second, edited in place")
	out = s.mustRun("gen", "--incremental")
	if !strings.Contains(out, "(1 changed)") {
		t.Errorf("edited gen output = %q", out)
	}
	corpus := s.corpus()
	if got := corpus[second].Metadata.Title; got != "Second, edited in place" {
		t.Errorf("second title = %q", got)
	}
	assertTime(t, "first update", corpus[first].Metadata.UpdateTime, t3)

	if err := os.Remove(s.path(first)); err != nil {
		t.Fatal(err)
	}
	out = s.mustRun("gen", "--incremental")
	if !strings.Contains(out, "(1 changed)") {
		t.Errorf("deleted gen output = %q", out)
	}
	if _, ok := s.corpus()[first]; ok {
		t.Error("deleted post should be evicted")
	}
}

func TestGenIncrementalAfterCommit(t *testing.T) {
	s := newSite(t)
	s.mustRun("gen")

	s.write(second, "Second, committed edit")
	s.commit("edit second", t4, second)

	out := s.mustRun("gen", "--incremental")
	if !strings.Contains(out, "Wrote 2 posts") || strings.Contains(out, "changed") {
		t.Errorf("gen after commit should be a full run, output = %q", out)
	}
	assertTime(t, "second update", s.corpus()[second].Metadata.UpdateTime, t4)
}

func TestGenOutsideRepository(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "posts"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "-C", dir, "-v", "0", "gen")
	if !errors.Is(err, provenance.ErrRepositoryNotFound) {
		t.Errorf("gen error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	s := newSite(t)

	out := s.mustRun("status")
	if !strings.Contains(out, "No state found") {
		t.Errorf("status without state = %q", out)
	}

	s.mustRun("gen")
	out = s.mustRun("status")
	if !strings.Contains(out, "up to date") {
		t.Errorf("status after gen = %q", out)
	}

	s.write(second, "Second, edited in place")
	out = s.mustRun("status", "--verbose")
	if !strings.Contains(out, "Changed posts: 1") || !strings.Contains(out, "~ "+second) {
		t.Errorf("status after edit = %q", out)
	}
	if !strings.Contains(out, "--incremental") {
		t.Errorf("expected an incremental hint: %q", out)
	}

	s.commit("edit second", t4, second)
	out = s.mustRun("status")
	if !strings.Contains(out, "New commits") {
		t.Errorf("status after commit = %q", out)
	}
}

func TestStatusJSON(t *testing.T) {
	s := newSite(t)
	s.mustRun("gen")
	if err := os.Remove(s.path(first)); err != nil {
		t.Fatal(err)
	}

	out := s.mustRun("status", "--json")

	var status StatusOutput
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to parse status %q: %v", out, err)
	}
	if !status.Stale || status.HistoryChanged {
		t.Errorf("status = %+v, want stale without history change", status)
	}
	if len(status.DeletedFiles) != 1 || status.DeletedFiles[0] != first {
		t.Errorf("deleted = %v, want [%s]", status.DeletedFiles, first)
	}
}

func TestDatesJSON(t *testing.T) {
	s := newSite(t)
	s.write("2024-05-01-draft.md", "Draft")

	out := s.mustRun("dates", "--json")

	var entries []DatesEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("failed to parse dates %q: %v", out, err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Sorted by filename
	assertTime(t, "first created", entries[0].Created, t1)
	assertTime(t, "first updated", entries[0].Updated, t3)
	assertTime(t, "second created", entries[1].Created, t2)
	if entries[1].Updated != nil {
		t.Errorf("second updated = %v, want nil", entries[1].Updated)
	}
	if entries[2].Filename != "2024-05-01-draft.md" {
		t.Errorf("third entry = %s", entries[2].Filename)
	}
}

func TestDatesText(t *testing.T) {
	s := newSite(t)

	out := s.mustRun("dates")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], second) || !strings.HasSuffix(lines[1], "-") {
		t.Errorf("second line = %q, want the creation date and no update", lines[1])
	}
	if !strings.Contains(lines[0], t3.Format(time.RFC3339)) {
		t.Errorf("first line = %q, want the update date", lines[0])
	}
}

func TestSkipMarkerFromConfig(t *testing.T) {
	s := newSite(t)
	config := "[history]\nskip_marker = \"[typo]\"\n"
	if err := os.WriteFile(filepath.Join(s.root, "layered.toml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	s.write(second, "Second, with a typo fixed")
	s.commit("[typo] fix second", t4, second)

	out := s.mustRun("dates", "--json")
	var entries []DatesEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("failed to parse dates %q: %v", out, err)
	}
	if entries[1].Updated != nil {
		t.Errorf("second updated = %v, want nil when the only edit is skipped", entries[1].Updated)
	}
}
