package model

import "time"

// Assignment is one coursework item resolved from its graded directory name.
type Assignment struct {
	Name     string    `json:"name"`
	Dir      string    `json:"dir"`
	Path     string    `json:"-"`
	Due      time.Time `json:"due"`
	MaxScore int       `json:"maxScore"`
	TypeName string    `json:"type"`
}

// IsLate reports whether ts falls after the deadline.
func (a Assignment) IsLate(ts time.Time) bool {
	return ts.After(a.Due)
}

// Offset returns how far ts lies from the deadline, positive when late.
func (a Assignment) Offset(ts time.Time) time.Duration {
	return ts.Sub(a.Due)
}

// SubmissionType defines which files an assignment accepts and which steps grade them.
type SubmissionType struct {
	Name string
	Ext  string
	// Encoding is empty for binary submissions.
	Encoding     string
	Preformatted bool
	InitialCap   bool
}

// Binary reports whether submissions are opaque binary files.
func (t SubmissionType) Binary() bool {
	return t.Encoding == ""
}
