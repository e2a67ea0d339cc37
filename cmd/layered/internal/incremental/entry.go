// Package incremental records the post files seen by the last generation so
// later runs can restrict the history walk to the posts that changed.
package incremental

// Entry represents a single post file's metadata and content hash.
type Entry struct {
	Name    string `json:"name"`
	Hash    string `json:"hash"`     // xxHash64 hex
	ModTime int64  `json:"mtime_ns"` // UnixNano
	Size    int64  `json:"size"`
}
