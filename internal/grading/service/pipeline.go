package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autograde/internal/grading/lock"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// Lister enumerates the intake queue.
type Lister interface {
	List(ctx context.Context, only string) ([]string, error)
}

// Grader grades one queued submission.
type Grader interface {
	Grade(ctx context.Context, filename string) (Outcome, error)
}

// ProgressStore publishes run progress.
type ProgressStore interface {
	Save(ctx context.Context, p model.Progress) error
}

// Summary reports what one pipeline run did.
type Summary struct {
	RunID   string `json:"runId"`
	Started bool   `json:"started"`
	// Skipped says why a run that did not start was skipped.
	Skipped  string    `json:"skipped,omitempty"`
	Graded   int       `json:"graded"`
	Failed   int       `json:"failed"`
	Failures []string  `json:"failures,omitempty"`
	Crashed  bool      `json:"crashed"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Pipeline drains the intake queue one submission at a time while holding
// the pipeline lock.
type Pipeline struct {
	lock            lock.Lock
	queue           Lister
	grader          Grader
	progress        ProgressStore
	progressTimeout time.Duration
	refreshInterval time.Duration
}

// PipelineConfig holds pipeline dependencies.
type PipelineConfig struct {
	Lock   lock.Lock
	Queue  Lister
	Grader Grader
	// Progress is optional.
	Progress        ProgressStore
	ProgressTimeout time.Duration
	// RefreshInterval renews the lock while a submission is graded. It
	// must be shorter than the lock's lease; zero renews only between
	// submissions.
	RefreshInterval time.Duration
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Lock == nil {
		return nil, fmt.Errorf("lock is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cfg.Grader == nil {
		return nil, fmt.Errorf("grader is required")
	}
	return &Pipeline{
		lock:            cfg.Lock,
		queue:           cfg.Queue,
		grader:          cfg.Grader,
		progress:        cfg.Progress,
		progressTimeout: cfg.ProgressTimeout,
		refreshInterval: cfg.RefreshInterval,
	}, nil
}

// Run grades queued submissions until the queue holds nothing but files
// that already failed in this run. only restricts grading to filenames
// containing it. A disabled or already running pipeline is not an error:
// Run returns a Summary saying why it skipped.
func (p *Pipeline) Run(ctx context.Context, only string) (summary Summary, err error) {
	summary.RunID = uuid.NewString()
	ctx = logger.WithRun(ctx, summary.RunID)
	progress := model.Progress{RunID: summary.RunID, StartedAt: time.Now()}

	if err := p.lock.Acquire(ctx); err != nil {
		if appErr.Is(err, appErr.PipelineDisabled) || appErr.Is(err, appErr.PipelineActive) {
			summary.Skipped = appErr.GetCode(err).Message()
			logger.Warn(ctx, "pipeline not started", zap.String("reason", summary.Skipped))
			progress.State, progress.Reason = model.RunSkipped, summary.Skipped
			p.publish(ctx, progress)
			return summary, nil
		}
		return summary, err
	}
	summary.Started = true
	logger.Info(ctx, "pipeline started", zap.String("only", only))

	defer func() {
		if releaseErr := p.lock.Release(ctx); releaseErr != nil {
			logger.Error(ctx, "release pipeline lock failed", zap.Error(releaseErr))
		}
		logger.Info(ctx, "pipeline stopped",
			zap.Int("graded", summary.Graded), zap.Int("failed", summary.Failed))
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "pipeline crashed", zap.Any("panic", r), zap.Stack("stack"))
			summary.Crashed = true
			err = appErr.Newf(appErr.GradingError, "pipeline crashed: %v", r)
			progress.State, progress.Reason = model.RunCrashed, err.Error()
			p.publish(ctx, progress)
		}
	}()

	progress.State = model.RunRunning
	p.publish(ctx, progress)

	bad := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "pipeline cancelled", zap.Error(err))
			progress.State, progress.Reason = model.RunFinished, err.Error()
			p.publish(ctx, progress)
			return summary, err
		}
		next, err := p.next(ctx, only, bad)
		if err != nil {
			return summary, err
		}
		if next == "" {
			break
		}
		if err := p.lock.Refresh(ctx); err != nil {
			logger.Error(ctx, "lost pipeline lock", zap.Error(err))
			return summary, err
		}

		progress.Current = next
		p.publish(ctx, progress)

		outcome, gradeErr, lockErr := p.gradeHeld(ctx, next)
		if lockErr != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, next)
			progress.State, progress.Reason = model.RunFinished, lockErr.Error()
			p.publish(ctx, progress)
			return summary, lockErr
		}
		switch {
		case gradeErr != nil:
			logger.Error(ctx, "could not grade submission", zap.String("submission", next), zap.Error(gradeErr))
			summary.Failed++
			summary.Failures = append(summary.Failures, next)
			bad[next] = true
		case !outcome.Passed:
			summary.Failed++
			summary.Failures = append(summary.Failures, next)
			summary.Outcomes = append(summary.Outcomes, outcome)
			bad[next] = true
			progress.LastGrade = outcome.Grade.String()
		default:
			summary.Graded++
			summary.Outcomes = append(summary.Outcomes, outcome)
			progress.LastGrade = outcome.Grade.String()
		}
		progress.Graded, progress.Failed = summary.Graded, summary.Failed
	}

	logger.Info(ctx, "queue drained",
		zap.Int("graded", summary.Graded), zap.Int("total", summary.Graded+summary.Failed))
	progress.State, progress.Current = model.RunFinished, ""
	p.publish(ctx, progress)
	return summary, nil
}

// gradeHeld grades one submission while renewing the lock every
// refreshInterval. A failed renewal cancels the grading and is returned as
// lockErr.
func (p *Pipeline) gradeHeld(ctx context.Context, filename string) (outcome Outcome, gradeErr error, lockErr error) {
	if p.refreshInterval <= 0 {
		outcome, gradeErr = p.grader.Grade(ctx, filename)
		return outcome, gradeErr, nil
	}

	gradeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gradeCtx.Done():
				return
			case <-ticker.C:
				if err := p.lock.Refresh(gradeCtx); err != nil {
					if gradeCtx.Err() != nil {
						return
					}
					logger.Error(ctx, "lost pipeline lock while grading",
						zap.String("submission", filename), zap.Error(err))
					lockErr = err
					cancel()
					return
				}
			}
		}
	}()

	outcome, gradeErr = p.grader.Grade(gradeCtx, filename)
	cancel()
	<-done
	return outcome, gradeErr, lockErr
}

// next returns the earliest queued file not already marked bad, or "".
func (p *Pipeline) next(ctx context.Context, only string, bad map[string]bool) (string, error) {
	names, err := p.queue.List(ctx, only)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if !bad[name] {
			return name, nil
		}
	}
	return "", nil
}

func (p *Pipeline) publish(ctx context.Context, progress model.Progress) {
	if p.progress == nil {
		return
	}
	ctxSave := ctx
	if p.progressTimeout > 0 {
		var cancel context.CancelFunc
		ctxSave, cancel = context.WithTimeout(ctx, p.progressTimeout)
		defer cancel()
	}
	progress.UpdatedAt = time.Now()
	if err := p.progress.Save(ctxSave, progress); err != nil {
		logger.Warn(ctx, "publish progress failed", zap.Error(err))
	}
}
