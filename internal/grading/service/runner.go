package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"autograde/internal/grading/model"
	"autograde/internal/grading/repository"
	"autograde/internal/grading/step"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultPrecision = 2

// Outcome is what grading one queued submission produced.
type Outcome struct {
	Filename string      `json:"filename"`
	Grade    model.Grade `json:"grade"`
	// Passed is false when a required step failed or a process error occurred.
	Passed bool   `json:"passed"`
	Record string `json:"record"`
	// Moved reports whether the submission left the queue.
	Moved    bool          `json:"moved"`
	Duration time.Duration `json:"duration"`
}

// Runner grades single submissions: it prepares the workspace, runs the
// submission type's steps, records every step and files the result.
type Runner struct {
	queueDir          string
	gradersRoot       string
	assignments       *repository.AssignmentStore
	workspace         *repository.Workspace
	results           *repository.ResultStore
	pipelines         map[string][]step.Step
	precision         int
	leaveProblemFiles bool
}

// RunnerConfig holds runner dependencies and settings.
type RunnerConfig struct {
	QueueDir    string
	GradersRoot string
	Assignments *repository.AssignmentStore
	Workspace   *repository.Workspace
	Results     *repository.ResultStore
	// Pipelines maps submission type names to their ordered steps.
	Pipelines map[string][]step.Step
	// Precision is the number of decimals grades are rounded to; negative
	// means the default.
	Precision int
	// LeaveProblemFiles keeps submissions that did not pass in the queue.
	LeaveProblemFiles bool
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.QueueDir == "" {
		return nil, fmt.Errorf("queue dir is required")
	}
	if cfg.Assignments == nil {
		return nil, fmt.Errorf("assignment store is required")
	}
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store is required")
	}
	precision := cfg.Precision
	if precision < 0 {
		precision = defaultPrecision
	}
	return &Runner{
		queueDir:          cfg.QueueDir,
		gradersRoot:       cfg.GradersRoot,
		assignments:       cfg.Assignments,
		workspace:         cfg.Workspace,
		results:           cfg.Results,
		pipelines:         cfg.Pipelines,
		precision:         precision,
		leaveProblemFiles: cfg.LeaveProblemFiles,
	}, nil
}

// Grade grades one queued file. Configuration problems are returned before
// anything is written and leave the submission queued. Once the record is
// open, every problem ends up in the record as an ERR grade.
func (r *Runner) Grade(ctx context.Context, filename string) (Outcome, error) {
	start := time.Now()
	ctx = logger.WithSubmission(ctx, filename)

	sub, err := repository.ParseSubmitted(filename)
	if err != nil {
		return Outcome{}, err
	}
	sub.Path = filepath.Join(r.queueDir, filename)
	if !fsutil.Exists(sub.Path) {
		return Outcome{}, appErr.ConfigError(appErr.SubmissionNotFound, filename)
	}
	a, err := r.assignments.Resolve(ctx, sub.Assignment)
	if err != nil {
		return Outcome{}, err
	}
	st, err := r.assignments.Type(a)
	if err != nil {
		return Outcome{}, err
	}
	steps, ok := r.pipelines[st.Name]
	if !ok {
		return Outcome{}, appErr.ConfigError(appErr.UndefinedSubmissionType, st.Name).
			WithMessage("no grading steps defined for submission type " + st.Name)
	}
	if sub.Ext != st.Ext {
		return Outcome{}, appErr.Newf(appErr.WrongExtension, "%s needs .%s files, got .%s", a.Name, st.Ext, sub.Ext).
			WithDetail("filename", filename)
	}

	rec, err := r.results.Open(ctx, sub, a)
	if err != nil {
		return Outcome{}, err
	}
	grade, passed := r.execute(ctx, rec, sub, a, steps)
	final, err := rec.Finish(grade)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Filename: filename, Grade: grade, Passed: passed, Record: filepath.Base(final)}
	if passed || !r.leaveProblemFiles {
		if _, err := r.results.MoveSubmission(ctx, sub, a); err != nil {
			return out, err
		}
		out.Moved = true
	}
	out.Duration = time.Since(start)
	logger.Info(ctx, "graded submission",
		zap.String("grade", grade.String()),
		zap.Bool("passed", passed),
		zap.Bool("moved", out.Moved),
		zap.Duration("duration", out.Duration))
	return out, nil
}

// execute runs the steps against a fresh workspace and returns the
// aggregate grade. A step error or panic is written to the record and
// makes the grade ERR.
func (r *Runner) execute(ctx context.Context, rec *repository.Record, sub model.Submission, a model.Assignment, steps []step.Step) (grade model.Grade, passed bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "grading step crashed", zap.Any("panic", p), zap.Stack("stack"))
			rec.WriteError(appErr.GraderCrash.Message() + ".")
			grade, passed = model.ERRGrade, false
		}
	}()

	if err := r.workspace.Prepare(ctx, sub); err != nil {
		return r.processError(ctx, rec, err)
	}
	sc := step.NewContext(r.workspace.Dir(), r.gradersRoot, sub, a)

	var grades []model.Grade
	for _, s := range steps {
		report, err := s.Run(ctx, sc)
		if err != nil {
			return r.processError(ctx, rec, err)
		}
		if err := report.Grade.Validate(); err != nil {
			return r.processError(ctx, rec, appErr.Wrapf(err, appErr.InvalidGradeFormat, "%s returned a bad grade", s.Label()))
		}
		if report.Grade.IsSet() {
			grades = append(grades, report.Grade)
		}
		if report.Grade.IsSet() || report.Output != "" {
			// only the displayed step grade is rounded; the sum is rounded once
			rec.WriteStep(s.Kind(), s.Label(), report.Grade.Rounded(r.precision), report.Output)
		}
		if !report.Passed && s.Required() {
			logger.Warn(ctx, "required step failed, stopping", zap.String("step", s.Kind()))
			return model.Aggregate(grades, r.precision), false
		}
	}
	return model.Aggregate(grades, r.precision), true
}

func (r *Runner) processError(ctx context.Context, rec *repository.Record, err error) (model.Grade, bool) {
	logger.Error(ctx, "grading process error", zap.Error(err))
	rec.WriteError(fmt.Sprintf("%s: %s", appErr.GetCode(err).Message(), err.Error()))
	return model.ERRGrade, false
}
