package model

import "time"

// Run states reported while the pipeline drains the queue.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunSkipped  = "skipped"
	RunCrashed  = "crashed"
)

// Progress is a snapshot of one pipeline run, published for the status service.
type Progress struct {
	RunID     string    `json:"runId"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Current   string    `json:"current,omitempty"`
	Graded    int       `json:"graded"`
	Failed    int       `json:"failed"`
	LastGrade string    `json:"lastGrade,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
