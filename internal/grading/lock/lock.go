package lock

import (
	"context"
	"time"
)

// State describes who holds the pipeline lock, as reported to operators.
type State struct {
	Active   bool      `json:"active"`
	Owner    string    `json:"owner,omitempty"`
	PID      int       `json:"pid,omitempty"`
	Alive    bool      `json:"alive"`
	Disabled bool      `json:"disabled"`
	Since    time.Time `json:"since,omitempty"`
}

// Lock guarantees at most one pipeline drains the queue at a time.
//
// Acquire fails with PipelineDisabled when grading is switched off and with
// PipelineActive when another run holds the lock. Release is safe to call
// on a lock that was never acquired.
type Lock interface {
	Acquire(ctx context.Context) error
	// Refresh confirms the lock is still held, extending it where the
	// backend expires locks.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
	Inspect(ctx context.Context) (State, error)
}
