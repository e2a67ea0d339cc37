// Package config provides configuration management for layered.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/layered/config.toml)
//  3. Project config (.layered/config.toml or layered.toml)
//  4. Environment variables (LAYERED_*)
//  5. CLI flags (highest priority)
package config

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Config is the main configuration struct for layered.
type Config struct {
	// Posts configures where post documents live.
	Posts PostsConfig `toml:"posts"`

	// Output configures the generated corpus.
	Output OutputConfig `toml:"output"`

	// History configures how commit history contributes timestamps.
	History HistoryConfig `toml:"history"`

	// Watch configures watch mode.
	Watch WatchConfig `toml:"watch"`

	// State configures the persisted index used by incremental runs.
	State StateConfig `toml:"state"`

	// Log configures diagnostics.
	Log LogConfig `toml:"log"`
}

// PostsConfig locates post documents.
type PostsConfig struct {
	// Dir is the posts directory. Only its direct children are posts.
	Dir string `toml:"dir"`

	// Extensions lists the file extensions treated as posts (e.g., [".md"]).
	Extensions []string `toml:"extensions"`
}

// OutputConfig holds output settings.
type OutputConfig struct {
	// Path is the JSON file the corpus is written to.
	Path string `toml:"path"`
}

// HistoryConfig holds history walk settings.
type HistoryConfig struct {
	// SkipMarker excludes a commit from timestamps when its message
	// contains it. Set to an empty string to disable.
	SkipMarker *string `toml:"skip_marker"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	// DebounceMs is the quiescence window before a refresh, in milliseconds.
	DebounceMs int `toml:"debounce_ms"`
}

// StateConfig holds persisted state settings.
type StateConfig struct {
	// Dir is the state directory, relative to the project root.
	Dir string `toml:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Verbosity is the -v level (0=error .. 4=trace).
	Verbosity *int `toml:"verbosity"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	marker := "[skip time]"
	verbosity := 1
	return &Config{
		Posts: PostsConfig{
			Dir:        "posts",
			Extensions: []string{".md"},
		},
		Output: OutputConfig{
			Path: "out.json",
		},
		History: HistoryConfig{
			SkipMarker: &marker,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
		State: StateConfig{
			Dir: ".layered",
		},
		Log: LogConfig{
			Verbosity: &verbosity,
			Format:    "text",
		},
	}
}

// IsPostFile reports whether name has one of the configured extensions.
func (c *Config) IsPostFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.ContainsFunc(c.Posts.Extensions, func(e string) bool {
		return strings.ToLower(e) == ext
	})
}

// SkipMarker returns the configured skip marker.
func (c *Config) SkipMarker() string {
	if c.History.SkipMarker == nil {
		return ""
	}
	return *c.History.SkipMarker
}

// Debounce returns the watch quiescence window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Posts.Dir != "" {
		c.Posts.Dir = other.Posts.Dir
	}
	if len(other.Posts.Extensions) > 0 {
		c.Posts.Extensions = other.Posts.Extensions
	}

	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}

	if other.History.SkipMarker != nil {
		c.History.SkipMarker = other.History.SkipMarker
	}

	if other.Watch.DebounceMs > 0 {
		c.Watch.DebounceMs = other.Watch.DebounceMs
	}

	if other.State.Dir != "" {
		c.State.Dir = other.State.Dir
	}

	if other.Log.Verbosity != nil {
		c.Log.Verbosity = other.Log.Verbosity
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
