package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autograde/internal/common/cache"
	"autograde/internal/grading/latepolicy"
	"autograde/internal/grading/lock"
	"autograde/internal/grading/model"
	"autograde/internal/grading/repository"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const reportKeyPrefix = "gradepipe:report:"

// Inspector reports the pipeline lock state.
type Inspector interface {
	Inspect(ctx context.Context) (lock.State, error)
}

// ProgressReader reads published run progress.
type ProgressReader interface {
	Latest(ctx context.Context) (model.Progress, error)
}

// Status is the pipeline overview shown to operators.
type Status struct {
	Lock        lock.State      `json:"lock"`
	QueueLength int             `json:"queueLength"`
	LastRun     *model.Progress `json:"lastRun,omitempty"`
}

// SubmissionReport is a graded submission with its lateness and adjusted grade.
type SubmissionReport struct {
	Filename        string                `json:"filename"`
	Owner           string                `json:"owner"`
	Assignment      string                `json:"assignment"`
	Timestamp       time.Time             `json:"timestamp"`
	Record          string                `json:"record"`
	Grade           model.Grade           `json:"grade"`
	HumanVerified   bool                  `json:"humanVerified"`
	HumanComment    bool                  `json:"humanComment"`
	Late            bool                  `json:"late"`
	TooLate         bool                  `json:"tooLate"`
	LateOffset      string                `json:"lateOffset"`
	SubmissionCount int                   `json:"submissionCount"`
	Adjustment      latepolicy.Adjustment `json:"adjustment"`
}

// ReportService answers read-only questions about the queue and graded
// submissions. It never writes to the grading directories.
type ReportService struct {
	inspector Inspector
	queue     Lister
	reader    *repository.GradedReader
	policies  latepolicy.Table
	settings  latepolicy.Settings
	progress  ProgressReader
	cache     cache.BasicOps
	cacheTTL  time.Duration
}

// ReportConfig holds report service dependencies.
type ReportConfig struct {
	Inspector Inspector
	Queue     Lister
	Reader    *repository.GradedReader
	Policies  latepolicy.Table
	Settings  latepolicy.Settings
	// Progress and Cache are optional.
	Progress ProgressReader
	Cache    cache.BasicOps
	CacheTTL time.Duration
}

// NewReportService creates a ReportService.
func NewReportService(cfg ReportConfig) (*ReportService, error) {
	if cfg.Inspector == nil {
		return nil, fmt.Errorf("lock inspector is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("graded reader is required")
	}
	return &ReportService{
		inspector: cfg.Inspector,
		queue:     cfg.Queue,
		reader:    cfg.Reader,
		policies:  cfg.Policies,
		settings:  cfg.Settings,
		progress:  cfg.Progress,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
	}, nil
}

// Status returns the lock state, queue length and the latest run if known.
func (s *ReportService) Status(ctx context.Context) (Status, error) {
	st, err := s.inspector.Inspect(ctx)
	if err != nil {
		return Status{}, err
	}
	names, err := s.queue.List(ctx, "")
	if err != nil {
		return Status{}, err
	}
	out := Status{Lock: st, QueueLength: len(names)}
	if s.progress != nil {
		if p, err := s.progress.Latest(ctx); err == nil {
			out.LastRun = &p
		}
	}
	return out, nil
}

// Queue lists queued filenames in grading order.
func (s *ReportService) Queue(ctx context.Context, only string) ([]string, error) {
	names, err := s.queue.List(ctx, only)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Submission builds the report for one graded submission.
func (s *ReportService) Submission(ctx context.Context, filename string) (SubmissionReport, error) {
	if filename == "" {
		return SubmissionReport{}, appErr.ValidationError("filename", "required")
	}
	if s.cache == nil || s.cacheTTL <= 0 {
		return s.buildReport(ctx, filename)
	}
	return cache.GetWithCached(ctx, s.cache, reportKeyPrefix+filename, s.cacheTTL, s.cacheTTL,
		func(r SubmissionReport) bool { return r.Filename == "" },
		func(r SubmissionReport) (string, error) {
			data, err := json.Marshal(r)
			return string(data), err
		},
		func(v string) (SubmissionReport, error) {
			var r SubmissionReport
			err := json.Unmarshal([]byte(v), &r)
			return r, err
		},
		func(ctx context.Context) (SubmissionReport, error) {
			return s.buildReport(ctx, filename)
		},
	)
}

func (s *ReportService) buildReport(ctx context.Context, filename string) (SubmissionReport, error) {
	rec, a, err := s.reader.Find(ctx, filename)
	if err != nil {
		return SubmissionReport{}, err
	}
	sub := rec.Submission
	count, err := s.reader.Count(ctx, sub.Owner, a)
	if err != nil {
		return SubmissionReport{}, err
	}
	policies, err := s.policies.For(a)
	if err != nil {
		return SubmissionReport{}, err
	}
	rule := policies.Select(sub.Timestamp)
	adj, err := latepolicy.AdjustedGrade(rec.Grade, rule, float64(a.MaxScore), sub.Timestamp, count, s.settings)
	if err != nil {
		logger.Warn(ctx, "late policy could not be applied",
			zap.String("submission", filename), zap.Error(err))
		return SubmissionReport{}, err
	}
	return SubmissionReport{
		Filename:        filename,
		Owner:           sub.Owner,
		Assignment:      a.Name,
		Timestamp:       sub.Timestamp,
		Record:          rec.Filename,
		Grade:           rec.Grade,
		HumanVerified:   rec.HumanVerified,
		HumanComment:    rec.HumanComment,
		Late:            a.IsLate(sub.Timestamp),
		TooLate:         policies.IsTooLate(sub.Timestamp),
		LateOffset:      model.FormatOffset(a.Offset(sub.Timestamp)),
		SubmissionCount: count,
		Adjustment:      adj,
	}, nil
}
