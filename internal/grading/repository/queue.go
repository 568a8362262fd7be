package repository

import (
	"context"
	"os"
	"sort"
	"strings"

	appErr "autograde/pkg/errors"
)

// Queue is the intake directory of timestamped submissions awaiting grading.
type Queue struct {
	dir string
}

// NewQueue creates a Queue over dir.
func NewQueue(dir string) *Queue {
	return &Queue{dir: dir}
}

// Dir returns the intake directory.
func (q *Queue) Dir() string {
	return q.dir
}

// List returns the queued filenames, earliest timestamp first. When only is
// non-empty, just the names containing it are returned. Names without a
// timestamp sort last so the driver reaches them after everything gradable.
func (q *Queue) List(ctx context.Context, only string) ([]string, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "read intake directory failed")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if only != "" && !strings.Contains(name, only) {
			continue
		}
		names = append(names, name)
	}
	sortByTimestamp(names)
	return names, nil
}

// sortByTimestamp orders names by their embedded timestamp, then by name.
func sortByTimestamp(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ti := timestampPattern.FindString(names[i])
		tj := timestampPattern.FindString(names[j])
		switch {
		case ti == "" && tj == "":
			return names[i] < names[j]
		case ti == "":
			return false
		case tj == "":
			return true
		case ti != tj:
			return ti < tj
		}
		return names[i] < names[j]
	})
}
