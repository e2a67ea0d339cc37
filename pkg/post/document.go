// Package post reads post documents from a directory, attaches provenance
// timestamps derived from version control history, and reads and writes the
// resulting corpus as JSON.
package post

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoFrontmatter is returned for documents that do not open with a
	// frontmatter block.
	ErrNoFrontmatter = errors.New("no frontmatter found")

	// ErrUnterminatedFrontmatter is returned when the closing delimiter is
	// missing.
	ErrUnterminatedFrontmatter = errors.New("unterminated frontmatter")
)

const delimiter = "---"

// Document is a parsed post file.
type Document struct {
	Title string
	Tags  []string

	// ForcePublishTime and ForceUpdateTime override the timestamps derived
	// from history.
	ForcePublishTime *time.Time
	ForceUpdateTime  *time.Time

	Hidden bool
	Wip    bool
	Legacy bool

	// Body is the content after the frontmatter, unrendered.
	Body string
}

type frontmatter struct {
	Title            string  `yaml:"title"`
	Tags             tagList `yaml:"tags"`
	ForcePublishTime string  `yaml:"force_publish_time"`
	ForceUpdateTime  string  `yaml:"force_update_time"`
	Hidden           bool    `yaml:"hidden"`
	Wip              bool    `yaml:"wip"`
	Legacy           bool    `yaml:"legacy"`
}

// tagList accepts either a YAML sequence or a comma separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var tags []string
		for _, tag := range strings.Split(node.Value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		*t = tags
		return nil
	case yaml.SequenceNode:
		var tags []string
		if err := node.Decode(&tags); err != nil {
			return err
		}
		*t = tags
		return nil
	}
	return fmt.Errorf("line %d: tags must be a list or a comma separated string", node.Line)
}

// Parse parses a post file.
func Parse(data []byte) (*Document, error) {
	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, err
	}

	var raw frontmatter
	dec := yaml.NewDecoder(strings.NewReader(fm))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}

	doc := &Document{
		Title:  raw.Title,
		Tags:   raw.Tags,
		Hidden: raw.Hidden,
		Wip:    raw.Wip,
		Legacy: raw.Legacy,
		Body:   body,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if doc.ForcePublishTime, err = parseTime("force_publish_time", raw.ForcePublishTime); err != nil {
		return nil, err
	}
	if doc.ForceUpdateTime, err = parseTime("force_update_time", raw.ForceUpdateTime); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseTime(key, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &t, nil
}

// splitFrontmatter separates the frontmatter block from the body. The block
// opens on the first line and closes at the next line consisting of the
// delimiter alone.
func splitFrontmatter(text string) (string, string, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))

	first, rest, _ := strings.Cut(text, "\n")
	if first != delimiter {
		return "", "", ErrNoFrontmatter
	}

	var fm []string
	for {
		var line string
		var more bool
		line, rest, more = strings.Cut(rest, "\n")
		if line == delimiter {
			return strings.Join(fm, "\n"), strings.TrimSpace(rest), nil
		}
		if !more {
			return "", "", ErrUnterminatedFrontmatter
		}
		fm = append(fm, line)
	}
}
