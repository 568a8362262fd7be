package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
)

// GradedReader reads graded submissions and their records back from the
// assignment directories.
type GradedReader struct {
	assignments *AssignmentStore
	queue       *Queue
	ext         string
}

// NewGradedReader creates a GradedReader. queue may be nil, in which case
// only graded submissions are counted.
func NewGradedReader(assignments *AssignmentStore, queue *Queue, ext string) *GradedReader {
	if ext == "" {
		ext = DefaultResultExt
	}
	return &GradedReader{assignments: assignments, queue: queue, ext: ext}
}

// Find returns the record of a graded submission along with its assignment.
func (r *GradedReader) Find(ctx context.Context, filename string) (model.GradeRecord, model.Assignment, error) {
	sub, err := ParseSubmitted(filename)
	if err != nil {
		return model.GradeRecord{}, model.Assignment{}, err
	}
	a, err := r.assignments.Resolve(ctx, sub.Assignment)
	if err != nil {
		return model.GradeRecord{}, model.Assignment{}, err
	}
	sub.Path = filepath.Join(a.Path, filename)
	if !fsutil.Exists(sub.Path) {
		return model.GradeRecord{}, a, appErr.Newf(appErr.SubmissionNotFound, "%s has not been graded", filename).
			WithDetail("filename", filename)
	}

	entries, err := os.ReadDir(a.Path)
	if err != nil {
		return model.GradeRecord{}, a, appErr.Wrapf(err, appErr.InternalServerError, "read assignment directory failed")
	}
	var records []model.GradeRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, sub.Base()+"-") || !strings.HasSuffix(name, "."+r.ext) {
			continue
		}
		rec, err := ParseGraded(name)
		if err != nil {
			continue
		}
		rec.Path = filepath.Join(a.Path, name)
		records = append(records, rec)
	}
	switch len(records) {
	case 0:
		return model.GradeRecord{}, a, appErr.ConfigError(appErr.NoGraderResults, filename)
	case 1:
	default:
		return model.GradeRecord{}, a, appErr.ConfigError(appErr.MultipleGraderResults, filename)
	}
	rec := records[0]
	rec.Submission = sub
	return rec, a, nil
}

// Count returns how many submissions owner has made for an assignment,
// graded or still queued. Owners match case-insensitively.
func (r *GradedReader) Count(ctx context.Context, owner string, a model.Assignment) (int, error) {
	t, err := r.assignments.Type(a)
	if err != nil {
		return 0, err
	}
	owner = strings.ToLower(owner)
	dirs := []string{a.Path}
	if r.queue != nil {
		dirs = append(dirs, r.queue.Dir())
	}
	count := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0, appErr.Wrapf(err, appErr.InternalServerError, "read %s failed", filepath.Base(dir))
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			sub, err := ParseSubmitted(entry.Name())
			if err != nil {
				continue
			}
			if sub.Owner == owner && sub.Assignment == a.Name && sub.Ext == t.Ext {
				count++
			}
		}
	}
	return count, nil
}
