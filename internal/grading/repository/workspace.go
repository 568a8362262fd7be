package repository

import (
	"context"
	"path/filepath"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// Workspace is the scratch directory a submission is graded in.
type Workspace struct {
	dir string
}

// NewWorkspace creates a Workspace over dir.
func NewWorkspace(dir string) *Workspace {
	return &Workspace{dir: dir}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Prepare empties the workspace and copies the submission in under its
// canonical name.
func (w *Workspace) Prepare(ctx context.Context, sub model.Submission) error {
	if err := fsutil.ClearDir(w.dir); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceUnprepared, "clear workspace failed")
	}
	dst := filepath.Join(w.dir, sub.CanonicalName())
	if err := fsutil.CopyFile(sub.Path, dst); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceUnprepared, "copy submission into workspace failed")
	}
	logger.Debug(ctx, "workspace prepared", zap.String("file", sub.CanonicalName()))
	return nil
}
