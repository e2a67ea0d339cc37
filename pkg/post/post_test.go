package post

import (
	"testing"
	"time"

	"github.com/CircuitCoder/layered/internal/log"
	"github.com/CircuitCoder/layered/pkg/provenance"
)

func TestIDFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"2024-01-02-hello-world.md", "hello-world", false},
		{"2019-12-31-a.markdown", "a", false},
		{"2024-01-02-v1.2.md", "v1.2", false},
		{"2024-01-02-.md", "", true},
		{"2024-01-02-hello", "", true},
		{"24-01-02-hello.md", "", true},
		{"2024_01_02-hello.md", "", true},
		{"abcd-01-02-hello.md", "", true},
		{"notes.md", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := IDFromFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IDFromFilename() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IDFromFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestEnrich(t *testing.T) {
	t1 := time.Date(2022, time.March, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2022, time.June, 1, 10, 0, 0, 0, time.UTC)
	forced := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		doc         Document
		rec         provenance.Record
		wantPublish time.Time
		wantUpdate  *time.Time
	}{
		{
			name:        "never committed",
			wantPublish: now,
		},
		{
			name:        "single commit",
			rec:         provenance.Record{Created: &t1, Updated: &t1, CreatedContent: "a", UpdatedContent: "a"},
			wantPublish: t1,
		},
		{
			name:        "modified later",
			rec:         provenance.Record{Created: &t1, Updated: &t2, CreatedContent: "a", UpdatedContent: "b"},
			wantPublish: t1,
			wantUpdate:  &t2,
		},
		{
			name:        "forced times win",
			doc:         Document{ForcePublishTime: &forced, ForceUpdateTime: ptr(forced.Add(time.Hour))},
			rec:         provenance.Record{Created: &t1, Updated: &t2, CreatedContent: "a", UpdatedContent: "b"},
			wantPublish: forced,
			wantUpdate:  ptr(forced.Add(time.Hour)),
		},
		{
			name:        "forced update without history",
			doc:         Document{ForceUpdateTime: &t2},
			wantPublish: now,
			wantUpdate:  &t2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Enrich("2022-03-01-post.md", &tt.doc, tt.rec, now, log.Discard())
			if err != nil {
				t.Fatalf("Enrich() error = %v", err)
			}
			if p.Metadata.ID != "post" {
				t.Errorf("ID = %q, want %q", p.Metadata.ID, "post")
			}
			if !p.Metadata.PublishTime.Equal(tt.wantPublish) {
				t.Errorf("PublishTime = %v, want %v", p.Metadata.PublishTime, tt.wantPublish)
			}
			switch {
			case tt.wantUpdate == nil && p.Metadata.UpdateTime != nil:
				t.Errorf("UpdateTime = %v, want nil", *p.Metadata.UpdateTime)
			case tt.wantUpdate != nil && (p.Metadata.UpdateTime == nil || !p.Metadata.UpdateTime.Equal(*tt.wantUpdate)):
				t.Errorf("UpdateTime = %v, want %v", p.Metadata.UpdateTime, *tt.wantUpdate)
			}
		})
	}
}

func TestEnrichRejectsBadFilename(t *testing.T) {
	if _, err := Enrich("notes.md", &Document{}, provenance.Record{}, time.Now(), log.Discard()); err == nil {
		t.Error("Enrich() should fail without an id")
	}
}
