// Package runid generates the opaque identifiers attached to one
// engine run, one Phase 2.5 attempt, and one checkpoint document.
package runid

import "github.com/google/uuid"

// NewRun generates a run identifier.
func NewRun() string {
	return "run-" + uuid.NewString()
}

// NewAttempt generates an identifier for one Phase 2.5 island attempt.
func NewAttempt() string {
	return "attempt-" + uuid.NewString()
}

// NewCheckpoint generates an identifier for one checkpoint document.
func NewCheckpoint() string {
	return "checkpoint-" + uuid.NewString()
}
