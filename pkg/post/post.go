package post

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/CircuitCoder/layered/pkg/provenance"
)

// Post is one entry of the generated corpus.
type Post struct {
	Filename string   `json:"filename"`
	Metadata Metadata `json:"metadata"`
	Body     string   `json:"body"`
}

// Metadata is the structured part of a post.
type Metadata struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Tags        []string   `json:"tags"`
	PublishTime time.Time  `json:"publish_time"`
	UpdateTime  *time.Time `json:"update_time"`
	Hidden      bool       `json:"hidden"`
	Wip         bool       `json:"wip"`
	Legacy      bool       `json:"legacy"`
}

// IDFromFilename extracts the post id from a filename of the form
// YYYY-MM-DD-<id>.<ext>.
func IDFromFilename(filename string) (string, error) {
	const datePrefix = len("2006-01-02-")

	base := strings.TrimSuffix(filename, path.Ext(filename))
	if len(base) <= datePrefix || base == filename {
		return "", fmt.Errorf("unable to parse filename: %s", filename)
	}
	for i, c := range base[:datePrefix] {
		switch i {
		case 4, 7, 10:
			if c != '-' {
				return "", fmt.Errorf("unable to parse filename: %s", filename)
			}
		default:
			if c < '0' || c > '9' {
				return "", fmt.Errorf("unable to parse filename: %s", filename)
			}
		}
	}
	return base[datePrefix:], nil
}

// Enrich combines a parsed document with its provenance record. Timestamps
// forced by the document win; a post that was never committed is published
// now.
func Enrich(filename string, doc *Document, rec provenance.Record, now time.Time, logger *slog.Logger) (*Post, error) {
	id, err := IDFromFilename(filename)
	if err != nil {
		return nil, err
	}

	var publish time.Time
	switch {
	case doc.ForcePublishTime != nil:
		publish = *doc.ForcePublishTime
	case rec.Created != nil:
		publish = *rec.Created
	default:
		logger.Warn("unpublished post", "file", filename)
		publish = now
	}

	update := doc.ForceUpdateTime
	if update == nil {
		update = rec.LastUpdate()
	}

	return &Post{
		Filename: filename,
		Metadata: Metadata{
			ID:          id,
			Title:       doc.Title,
			Tags:        doc.Tags,
			PublishTime: publish,
			UpdateTime:  update,
			Hidden:      doc.Hidden,
			Wip:         doc.Wip,
			Legacy:      doc.Legacy,
		},
		Body: doc.Body,
	}, nil
}
