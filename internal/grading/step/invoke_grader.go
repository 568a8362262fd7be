package step

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"autograde/internal/grading/executor"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// InvokeGrader runs the assignment's external grader. The grader prints its
// report on stdout and exactly one grade on stderr.
type InvokeGrader struct {
	Base
	exec     executor.Executor
	command  string
	requires string
	timeout  time.Duration
}

func (s *InvokeGrader) Run(ctx context.Context, sc *Context) (Report, error) {
	if s.requires != "" {
		name, err := sc.Expand(s.requires)
		if err != nil {
			return Report{}, err
		}
		path, err := fsutil.SafeJoin(sc.Workspace, name)
		if err != nil || !fsutil.Exists(path) {
			return Report{}, appErr.Newf(appErr.GraderError, "%s is not in the workspace", name)
		}
	}

	cmd, err := buildCommand(s.command, sc.Lookup, nil)
	if err != nil {
		return Report{}, err
	}
	logger.Debug(ctx, "invoking grader", zap.Strings("cmd", cmd))
	res, err := s.exec.Run(ctx, executor.Request{
		Cmd:     cmd,
		Dir:     sc.Workspace,
		Timeout: s.timeout,
	})
	if err != nil {
		return Report{}, err
	}

	grade, ok := parseGraderGrade(res.Stderr)
	if ok && !res.TimedOut {
		return Report{Passed: true, Grade: model.Numeric(grade), Output: res.Stdout}, nil
	}

	var b strings.Builder
	if res.Stdout != "" {
		b.WriteString(res.Stdout)
		b.WriteString("\n\n")
	}
	if res.TimedOut {
		fmt.Fprintf(&b, "GRADER_ERROR: The grader did not finish within %s.\n", s.timeout)
	} else {
		b.WriteString("GRADER_ERROR: The grader did not return a valid grade on stderr.\n")
	}
	b.WriteString("Instead, its dying words were: \n")
	b.WriteString(res.Stderr)
	b.WriteString("\n")
	logger.Warn(ctx, "grader returned no valid grade",
		zap.Int("exit_code", res.ExitCode), zap.Bool("timed_out", res.TimedOut))
	return Report{Passed: false, Grade: model.ERRGrade, Output: b.String()}, nil
}

// parseGraderGrade reads the single non-negative number a grader writes to stderr.
func parseGraderGrade(stderr string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(stderr), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
