// Package syncer keeps the index consistent with the vault: full and
// incremental syncs driven by content hashes, a filesystem watcher with
// debounced event batches, and recovery for vector-pending chunks.
package syncer

import "time"

// Op is a vault file operation observed by the watcher.
type Op int

const (
	// OpCreate indicates a new note appeared.
	OpCreate Op = iota
	// OpModify indicates an existing note changed.
	OpModify
	// OpDelete indicates a note was removed.
	OpDelete
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one debounced note change. Path is relative to the vault
// root.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}
