package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Submission is one timestamped file waiting in, or taken from, the intake queue.
type Submission struct {
	// Filename is the queued name, <owner><assignment>-<timestamp>.<ext>.
	Filename string `json:"filename"`
	// OwnerName keeps the case used in the filename.
	OwnerName  string    `json:"-"`
	Owner      string    `json:"owner"`
	Assignment string    `json:"assignment"`
	Timestamp  time.Time `json:"timestamp"`
	Ext        string    `json:"ext"`
	Path       string    `json:"path,omitempty"`
}

// CanonicalName is the submission's name without the timestamp,
// the name it is graded under in the workspace.
func (s Submission) CanonicalName() string {
	return s.OwnerName + s.Assignment + "." + s.Ext
}

// Base is the queued filename without its extension.
func (s Submission) Base() string {
	return strings.TrimSuffix(s.Filename, "."+s.Ext)
}

// Stamp returns the timestamp in filename form.
func (s Submission) Stamp() string {
	return FormatTimestamp(s.Timestamp)
}

// Dir returns the directory currently holding the submission.
func (s Submission) Dir() string {
	return filepath.Dir(s.Path)
}
