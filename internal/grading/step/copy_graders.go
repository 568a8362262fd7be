package step

import (
	"context"
	"os"
	"path/filepath"

	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// CopyGraders copies the common grader files and then the assignment's own
// grader directory into the workspace. Assignment files overwrite common ones.
type CopyGraders struct {
	Base
	common     bool
	assignment bool
}

func (s *CopyGraders) Run(ctx context.Context, sc *Context) (Report, error) {
	if s.common {
		n, err := copyCommonGraders(sc.GradersRoot, sc.Workspace)
		if err != nil {
			return Report{}, err
		}
		logger.Debug(ctx, "copied common grader files", zap.Int("count", n))
	}
	if s.assignment {
		n, err := copyAssignmentGraders(filepath.Join(sc.GradersRoot, sc.Submission.Assignment), sc.Workspace)
		if err != nil {
			return Report{}, err
		}
		logger.Debug(ctx, "copied assignment grader files", zap.Int("count", n))
	}
	return Report{Passed: true}, nil
}

// copyCommonGraders copies top-level files only.
func copyCommonGraders(root, workspace string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.GraderError, "read graders root failed")
	}
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := fsutil.CopyFile(filepath.Join(root, entry.Name()), filepath.Join(workspace, entry.Name())); err != nil {
			return count, appErr.Wrapf(err, appErr.GraderCrash, "copy grader file %s failed", entry.Name())
		}
		count++
	}
	if count == 0 {
		return 0, appErr.New(appErr.GraderError).WithMessage("no common grader files to copy")
	}
	return count, nil
}

// copyAssignmentGraders copies files and whole directory trees.
func copyAssignmentGraders(dir, workspace string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.GraderError, "no grader directory %s", filepath.Base(dir))
	}
	if len(entries) == 0 {
		return 0, appErr.Newf(appErr.GraderError, "grader directory %s is empty", filepath.Base(dir))
	}
	for _, entry := range entries {
		src := filepath.Join(dir, entry.Name())
		dst := filepath.Join(workspace, entry.Name())
		if entry.IsDir() {
			err = fsutil.CopyTree(src, dst)
		} else {
			err = fsutil.CopyFile(src, dst)
		}
		if err != nil {
			return 0, appErr.Wrapf(err, appErr.GraderCrash, "copy grader file %s failed", entry.Name())
		}
	}
	return len(entries), nil
}
