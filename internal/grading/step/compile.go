package step

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"autograde/internal/grading/executor"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// Compile runs a compiler over the main file, or over every source file in
// the workspace when All is set.
//
// Success means every expected artifact exists afterwards. With no artifact
// template configured, any compiler output counts as failure.
type Compile struct {
	Base
	exec     executor.Executor
	command  string
	artifact string
	all      bool
	pattern  string
	grade    model.Grade
	timeout  time.Duration
}

func (s *Compile) Run(ctx context.Context, sc *Context) (Report, error) {
	var files []string
	if s.all {
		pattern := s.pattern
		if pattern == "" {
			pattern = "*." + sc.Submission.Ext
		}
		matches, err := filepath.Glob(filepath.Join(sc.Workspace, pattern))
		if err != nil {
			return Report{}, appErr.Wrapf(err, appErr.InvalidStepConfig, "bad compile pattern %q", pattern)
		}
		for _, m := range matches {
			files = append(files, filepath.Base(m))
		}
		sort.Strings(files)
	} else {
		files = []string{sc.Filename}
	}

	cmd, err := buildCommand(s.command, sc.Lookup, files)
	if err != nil {
		return Report{}, err
	}
	res, err := s.exec.Run(ctx, executor.Request{
		Cmd:         cmd,
		Dir:         sc.Workspace,
		Timeout:     s.timeout,
		MergeOutput: true,
	})
	if err != nil {
		return Report{}, err
	}

	compiled, err := s.compiled(sc, files, res)
	if err != nil {
		return Report{}, err
	}
	report := Report{Passed: compiled, Grade: s.grade, Output: res.Stdout}
	if compiled {
		sc.Set(KindCompile, "compiled", "1")
		logger.Debug(ctx, "compiled", zap.Strings("files", files))
	} else {
		sc.Set(KindCompile, "compiled", "0")
		report.Grade = model.FailedGrade(s.grade)
		if res.TimedOut {
			report.Output += "\n[compiler timed out]\n"
		}
		logger.Debug(ctx, "did not compile", zap.Strings("files", files), zap.Int("exit_code", res.ExitCode))
	}
	return report, nil
}

func (s *Compile) compiled(sc *Context, files []string, res executor.Result) (bool, error) {
	if res.TimedOut {
		return false, nil
	}
	if s.artifact == "" {
		return res.ExitCode == 0 && strings.TrimSpace(res.Stdout) == "", nil
	}
	if len(files) == 0 {
		return false, nil
	}
	for _, file := range files {
		name, _, _ := strings.Cut(file, ".")
		artifact, err := expand(s.artifact, sc.withOverrides(map[string]string{
			"filename": file,
			"name":     name,
		}))
		if err != nil {
			return false, err
		}
		path, err := fsutil.SafeJoin(sc.Workspace, artifact)
		if err != nil {
			return false, appErr.Wrapf(err, appErr.InvalidStepConfig, "artifact %q outside workspace", artifact)
		}
		if !fsutil.Exists(path) {
			return false, nil
		}
	}
	return true, nil
}
