package step

import (
	"context"

	"autograde/internal/grading/model"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// VerifyArtifact checks that a templated file exists in the workspace and,
// if so, makes it the main file for the steps that follow.
type VerifyArtifact struct {
	Base
	template string
}

func (s *VerifyArtifact) Run(ctx context.Context, sc *Context) (Report, error) {
	name, err := sc.Expand(s.template)
	if err != nil {
		return Report{}, err
	}
	path, err := fsutil.SafeJoin(sc.Workspace, name)
	if err == nil && fsutil.Exists(path) {
		logger.Info(ctx, "found main file", zap.String("file", name))
		sc.Filename = name
		sc.Set(KindVerifyArtifact, "filename", name)
		return Report{Passed: true, Grade: model.OKGrade}, nil
	}
	logger.Warn(ctx, "did not find main file", zap.String("file", name))
	return Report{
		Passed: false,
		Grade:  model.XGrade,
		Output: "Did not find required main file: " + name,
	}, nil
}
