package incremental

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func isMarkdown(name string) bool { return strings.HasSuffix(name, ".md") }

func writePosts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHashBytes(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty",
			input: []byte{},
			want:  "ef46db3751d8e999", // xxHash64 of empty input
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "26c7827d889f6da3", // xxHash64 of "hello"
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashBytes(tt.input)
			if got != tt.want {
				t.Errorf("HashBytes(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHashFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "2024-01-01-post.md")

	content := []byte("---\ntitle: hashed\n---\nbody")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatal(err)
	}

	hash, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if want := HashBytes(content); hash != want {
		t.Errorf("HashFile() = %q, want %q", hash, want)
	}
}

func TestHashFileNotFound(t *testing.T) {
	if _, err := HashFile("/nonexistent/post.md"); err == nil {
		t.Error("HashFile() expected error for nonexistent file")
	}
}

func TestIndexAddGet(t *testing.T) {
	idx := NewIndex()
	if idx.Version != IndexVersion {
		t.Errorf("Version = %d, want %d", idx.Version, IndexVersion)
	}

	idx.Add(&Entry{Name: "a.md", Hash: "abc123", ModTime: 1234567890, Size: 100})

	got, ok := idx.Get("a.md")
	if !ok {
		t.Fatal("Get() should find entry")
	}
	if got.Hash != "abc123" {
		t.Errorf("Hash = %q, want %q", got.Hash, "abc123")
	}
	if _, ok := idx.Get("missing.md"); ok {
		t.Error("Get() should not find nonexistent entry")
	}
}

func TestIndexNilSafety(t *testing.T) {
	var idx *Index
	idx.Add(&Entry{Name: "a.md"}) // Should not panic
	if _, ok := idx.Get("a.md"); ok {
		t.Error("Get() on nil index should return false")
	}
	if cs := idx.Diff(nil); !cs.IsEmpty() {
		t.Error("Diff of nil indexes should be empty")
	}

	idx = NewIndex()
	idx.Add(nil) // Should not panic
}

func TestIndexDiff(t *testing.T) {
	old := NewIndex()
	old.Add(&Entry{Name: "unchanged.md", Hash: "hash1", ModTime: 1000, Size: 10})
	old.Add(&Entry{Name: "touched.md", Hash: "hash2", ModTime: 1000, Size: 20})
	old.Add(&Entry{Name: "modified.md", Hash: "hash3", ModTime: 1000, Size: 20})
	old.Add(&Entry{Name: "deleted.md", Hash: "hash4", ModTime: 1000, Size: 30})

	cur := NewIndex()
	cur.Add(&Entry{Name: "unchanged.md", Hash: "hash1", ModTime: 1000, Size: 10})
	cur.Add(&Entry{Name: "touched.md", Hash: "hash2", ModTime: 3000, Size: 20})
	cur.Add(&Entry{Name: "modified.md", Hash: "hash3-changed", ModTime: 2000, Size: 25})
	cur.Add(&Entry{Name: "added.md", Hash: "hash5", ModTime: 1000, Size: 40})

	cs := old.Diff(cur)

	if !slices.Equal(cs.Added, []string{"added.md"}) {
		t.Errorf("Added = %v, want [added.md]", cs.Added)
	}
	if !slices.Equal(cs.Modified, []string{"modified.md"}) {
		t.Errorf("Modified = %v, want [modified.md]", cs.Modified)
	}
	if !slices.Equal(cs.Deleted, []string{"deleted.md"}) {
		t.Errorf("Deleted = %v, want [deleted.md]", cs.Deleted)
	}
}

func TestChangeSet(t *testing.T) {
	var nilCS *ChangeSet
	if !nilCS.IsEmpty() || nilCS.TotalChanges() != 0 || nilCS.Paths("posts") != nil {
		t.Error("nil ChangeSet should be empty")
	}

	cs := NewChangeSet()
	if !cs.IsEmpty() {
		t.Error("New ChangeSet should be empty")
	}

	cs.Added = []string{"c.md"}
	cs.Modified = []string{"a.md", "d.md"}
	cs.Deleted = []string{"b.md"}
	if cs.TotalChanges() != 4 {
		t.Errorf("TotalChanges() = %d, want 4", cs.TotalChanges())
	}

	want := []string{
		filepath.Join("posts", "a.md"),
		filepath.Join("posts", "b.md"),
		filepath.Join("posts", "c.md"),
		filepath.Join("posts", "d.md"),
	}
	if got := cs.Paths("posts"); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestScanDirectChildrenOnly(t *testing.T) {
	dir := t.TempDir()
	writePosts(t, dir, map[string]string{
		"2024-01-01-a.md": "a",
		"2024-01-02-b.md": "b",
		"cover.png":       "png",
	})
	if err := os.MkdirAll(filepath.Join(dir, "drafts"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePosts(t, filepath.Join(dir, "drafts"), map[string]string{"2024-02-01-c.md": "c"})

	idx, err := NewScanner(ScanConfig{Dir: dir, Accept: isMarkdown}).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(idx.Entries) != 2 {
		t.Errorf("Scan() found %d files, want 2", len(idx.Entries))
	}
	e, ok := idx.Get("2024-01-01-a.md")
	if !ok {
		t.Fatal("Scan() should find 2024-01-01-a.md")
	}
	if e.Hash != HashBytes([]byte("a")) || e.Size != 1 {
		t.Errorf("entry = %+v", e)
	}
}

func TestScanFastSkipsHashing(t *testing.T) {
	dir := t.TempDir()
	writePosts(t, dir, map[string]string{"a.md": "a"})

	idx, err := NewScanner(ScanConfig{Dir: dir}).ScanFast(context.Background())
	if err != nil {
		t.Fatalf("ScanFast() error = %v", err)
	}
	e, ok := idx.Get("a.md")
	if !ok || e.Hash != "" {
		t.Errorf("ScanFast() entry = %+v, want unhashed entry", e)
	}
}

func TestScanMissingDir(t *testing.T) {
	idx, err := NewScanner(ScanConfig{Dir: filepath.Join(t.TempDir(), "none")}).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(idx.Entries) != 0 {
		t.Errorf("Scan() found %d files, want 0", len(idx.Entries))
	}
}

func TestScanContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writePosts(t, dir, map[string]string{"a.md": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if _, err := NewScanner(ScanConfig{Dir: dir}).Scan(ctx); err == nil {
		t.Error("Scan() should return error when context is cancelled")
	}
}

func TestJSONStoreLoadSave(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), ".layered")
	store := NewJSONStore(stateDir)

	// Load should return empty index when file doesn't exist
	idx, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if idx.Version != IndexVersion {
		t.Errorf("Version = %d, want %d", idx.Version, IndexVersion)
	}

	idx.Head = "0123abcd"
	idx.Add(&Entry{Name: "a.md", Hash: "abc123", ModTime: 1234567890, Size: 100})
	if err := store.Save(idx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(stateDir, "state.json")); err != nil {
		t.Errorf("state file should exist after Save(): %v", err)
	}

	idx2, err := NewJSONStore(stateDir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if idx2.Head != "0123abcd" {
		t.Errorf("Head = %q, want %q", idx2.Head, "0123abcd")
	}
	entry, ok := idx2.Get("a.md")
	if !ok {
		t.Error("loaded index should contain a.md")
	} else if entry.Hash != "abc123" {
		t.Errorf("entry.Hash = %q, want %q", entry.Hash, "abc123")
	}
}

func TestJSONStoreRejectsNewerVersion(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stateDir, "state.json"), []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJSONStore(stateDir).Load(); err == nil {
		t.Error("Load() should reject a newer state version")
	}
}

func TestJSONStoreClearKeepsDirectory(t *testing.T) {
	stateDir := t.TempDir()
	configPath := filepath.Join(stateDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[posts]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewJSONStore(stateDir)
	if store.Exists() {
		t.Error("Exists() should return false when no state file")
	}
	if err := store.Save(NewIndex()); err != nil {
		t.Fatal(err)
	}
	if !store.Exists() {
		t.Fatal("Exists() should return true after Save()")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if store.Exists() {
		t.Error("Exists() should return false after Clear()")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Clear() should leave other files alone: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestTrackerStatus(t *testing.T) {
	root := t.TempDir()
	postsDir := filepath.Join(root, "posts")
	if err := os.MkdirAll(postsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writePosts(t, postsDir, map[string]string{
		"unchanged.md": "unchanged",
		"modified.md":  "modified",
		"deleted.md":   "deleted",
	})

	tracker := NewTracker(filepath.Join(root, ".layered"), postsDir, isMarkdown)
	ctx := context.Background()

	if err := tracker.Refresh(ctx, "abc"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	writePosts(t, postsDir, map[string]string{
		"new.md":      "new",
		"modified.md": "modified, and longer now",
		"ignored.txt": "not a post",
	})
	if err := os.Remove(filepath.Join(postsDir, "deleted.md")); err != nil {
		t.Fatal(err)
	}

	cs, err := tracker.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if !slices.Equal(cs.Added, []string{"new.md"}) {
		t.Errorf("Added = %v, want [new.md]", cs.Added)
	}
	if !slices.Equal(cs.Modified, []string{"modified.md"}) {
		t.Errorf("Modified = %v, want [modified.md]", cs.Modified)
	}
	if !slices.Equal(cs.Deleted, []string{"deleted.md"}) {
		t.Errorf("Deleted = %v, want [deleted.md]", cs.Deleted)
	}

	head, err := tracker.Head()
	if err != nil || head != "abc" {
		t.Errorf("Head() = %q, %v; want %q", head, err, "abc")
	}
}

func TestTrackerStatusNoChanges(t *testing.T) {
	dir := t.TempDir()
	writePosts(t, dir, map[string]string{"a.md": "a"})

	tracker := NewTracker(filepath.Join(dir, ".state"), dir, isMarkdown)
	ctx := context.Background()

	if err := tracker.Refresh(ctx, ""); err != nil {
		t.Fatal(err)
	}

	cs, err := tracker.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !cs.IsEmpty() {
		t.Errorf("ChangeSet should be empty when no changes, got %+v", cs)
	}
}

func TestTrackerStateLifecycle(t *testing.T) {
	dir := t.TempDir()
	writePosts(t, dir, map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"})

	tracker := NewTracker(filepath.Join(dir, ".state"), dir, isMarkdown)
	ctx := context.Background()

	if tracker.HasState() {
		t.Error("HasState() should return false before Refresh()")
	}
	if tracker.TrackedFileCount() != 0 {
		t.Error("TrackedFileCount() should return 0 before Refresh()")
	}

	if err := tracker.Refresh(ctx, "tip"); err != nil {
		t.Fatal(err)
	}
	if !tracker.HasState() {
		t.Error("HasState() should return true after Refresh()")
	}
	if tracker.TrackedFileCount() != 3 {
		t.Errorf("TrackedFileCount() = %d, want 3", tracker.TrackedFileCount())
	}

	if err := tracker.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if tracker.HasState() {
		t.Error("HasState() should return false after Reset()")
	}
}
