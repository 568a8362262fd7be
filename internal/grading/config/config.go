// Package config loads the YAML configuration shared by the grading commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autograde/internal/common/cache"
	"autograde/internal/grading/latepolicy"
	"autograde/internal/grading/lock"
	"autograde/internal/grading/model"
	"autograde/internal/grading/repository"
	"autograde/internal/grading/step"
	"autograde/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultPrecision           = 2
	defaultTotal               = 5
	defaultResubmissionPenalty = -0.1
	defaultMaxOutputBytes      = 1 << 20
	defaultProgressTTL         = 24 * time.Hour
	defaultProgressTimeout     = 2 * time.Second
	defaultReportCacheTTL      = 30 * time.Second
	defaultLockTTL             = 10 * time.Minute

	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

// PathsConfig holds the grading directories.
type PathsConfig struct {
	// Submitted is the intake queue.
	Submitted string `yaml:"submitted"`
	// Graded holds one directory per assignment.
	Graded string `yaml:"graded"`
	// Graders holds the common grader files and one directory per assignment.
	Graders   string `yaml:"graders"`
	Workspace string `yaml:"workspace"`
	// Home holds the pid file and the disable marker.
	Home string `yaml:"home"`
}

// GradingConfig holds grading defaults.
type GradingConfig struct {
	Precision           *int          `yaml:"precision"`
	DefaultTotal        int           `yaml:"defaultTotal"`
	DefaultType         string        `yaml:"defaultType"`
	ResultExt           string        `yaml:"resultExt"`
	LeaveProblemFiles   bool          `yaml:"leaveProblemFiles"`
	StepTimeout         time.Duration `yaml:"stepTimeout"`
	MaxOutputBytes      int64         `yaml:"maxOutputBytes"`
	ResubmissionPenalty *float64      `yaml:"resubmissionPenalty"`
}

// LockConfig selects and configures the pipeline lock.
type LockConfig struct {
	Backend       string        `yaml:"backend"`
	PIDFile       string        `yaml:"pidFile"`
	DisableMarker string        `yaml:"disableMarker"`
	ClearStale    bool          `yaml:"clearStale"`
	Key           string        `yaml:"key"`
	DisableKey    string        `yaml:"disableKey"`
	TTL           time.Duration `yaml:"ttl"`

	// RefreshInterval renews the lock while a submission is graded.
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// ProgressConfig holds run progress publishing settings.
type ProgressConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig holds report cache settings.
type ReportConfig struct {
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SubmissionTypeConfig defines one submission type and its grading steps.
type SubmissionTypeConfig struct {
	Ext          string        `yaml:"ext"`
	Encoding     string        `yaml:"encoding"`
	Preformatted bool          `yaml:"preformatted"`
	InitialCap   bool          `yaml:"initialCap"`
	Steps        []step.Config `yaml:"steps"`
}

// App is the configuration shared by gradepipe and grade-status.
type App struct {
	Logger          logger.Config                   `yaml:"logger"`
	Paths           PathsConfig                     `yaml:"paths"`
	Grading         GradingConfig                   `yaml:"grading"`
	Lock            LockConfig                      `yaml:"lock"`
	Redis           cache.RedisConfig               `yaml:"redis"`
	Progress        ProgressConfig                  `yaml:"progress"`
	Report          ReportConfig                    `yaml:"report"`
	SubmissionTypes map[string]SubmissionTypeConfig `yaml:"submissionTypes"`
	LatePolicies    latepolicy.Table                `yaml:"latePolicies"`
}

// LoadYAML reads path into out.
func LoadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// Load reads and validates an App config.
func Load(path string) (*App, error) {
	var cfg App
	if err := LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields and validates the rest.
func (a *App) ApplyDefaults() error {
	if a.Paths.Submitted == "" {
		return fmt.Errorf("paths.submitted is required")
	}
	if a.Paths.Graded == "" {
		return fmt.Errorf("paths.graded is required")
	}
	if a.Paths.Workspace == "" {
		return fmt.Errorf("paths.workspace is required")
	}
	if a.Paths.Graders == "" {
		a.Paths.Graders = filepath.Join(filepath.Dir(a.Paths.Graded), "graders")
	}
	if a.Paths.Home == "" {
		a.Paths.Home = filepath.Dir(a.Paths.Submitted)
	}

	if a.Grading.Precision == nil {
		p := defaultPrecision
		a.Grading.Precision = &p
	}
	if a.Grading.DefaultTotal <= 0 {
		a.Grading.DefaultTotal = defaultTotal
	}
	if a.Grading.ResultExt == "" {
		a.Grading.ResultExt = repository.DefaultResultExt
	}
	if a.Grading.MaxOutputBytes <= 0 {
		a.Grading.MaxOutputBytes = defaultMaxOutputBytes
	}
	if a.Grading.ResubmissionPenalty == nil {
		p := defaultResubmissionPenalty
		a.Grading.ResubmissionPenalty = &p
	}

	switch a.Lock.Backend {
	case "":
		a.Lock.Backend = LockBackendFile
	case LockBackendFile:
	case LockBackendRedis:
		if a.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis lock")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", a.Lock.Backend)
	}
	if a.Lock.PIDFile == "" {
		a.Lock.PIDFile = lock.DefaultPIDFile
	}
	if a.Lock.DisableMarker == "" {
		a.Lock.DisableMarker = lock.DefaultDisableMarker
	}
	if a.Lock.TTL <= 0 {
		a.Lock.TTL = defaultLockTTL
	}
	if a.Lock.RefreshInterval <= 0 {
		a.Lock.RefreshInterval = a.Lock.TTL / 3
	}
	if a.Lock.RefreshInterval >= a.Lock.TTL {
		return fmt.Errorf("lock.refreshInterval must be shorter than lock.ttl")
	}
	if a.Redis.Addr != "" {
		applyRedisDefaults(&a.Redis)
	}

	if a.Progress.TTL == 0 {
		a.Progress.TTL = defaultProgressTTL
	}
	if a.Progress.Timeout == 0 {
		a.Progress.Timeout = defaultProgressTimeout
	}
	if a.Report.CacheTTL == 0 {
		a.Report.CacheTTL = defaultReportCacheTTL
	}

	if len(a.SubmissionTypes) == 0 {
		return fmt.Errorf("at least one submission type is required")
	}
	if a.Grading.DefaultType == "" {
		if len(a.SubmissionTypes) != 1 {
			return fmt.Errorf("grading.defaultType is required with several submission types")
		}
		for name := range a.SubmissionTypes {
			a.Grading.DefaultType = name
		}
	}
	if _, ok := a.SubmissionTypes[a.Grading.DefaultType]; !ok {
		return fmt.Errorf("default submission type %q is not defined", a.Grading.DefaultType)
	}
	for name, t := range a.SubmissionTypes {
		if t.Ext == "" {
			return fmt.Errorf("submission type %q has no ext", name)
		}
	}
	return a.LatePolicies.Validate()
}

// Settings returns the grade adjustment settings.
func (a *App) Settings() latepolicy.Settings {
	return latepolicy.Settings{
		Precision:           *a.Grading.Precision,
		ResubmissionPenalty: *a.Grading.ResubmissionPenalty,
	}
}

// Types returns the configured submission types by name.
func (a *App) Types() map[string]model.SubmissionType {
	out := make(map[string]model.SubmissionType, len(a.SubmissionTypes))
	for name, t := range a.SubmissionTypes {
		out[name] = model.SubmissionType{
			Name:         name,
			Ext:          t.Ext,
			Encoding:     t.Encoding,
			Preformatted: t.Preformatted,
			InitialCap:   t.InitialCap,
		}
	}
	return out
}

// Pipelines builds the step list of every submission type.
func (a *App) Pipelines(deps step.Deps) (map[string][]step.Step, error) {
	out := make(map[string][]step.Step, len(a.SubmissionTypes))
	for name, t := range a.SubmissionTypes {
		steps, err := step.BuildAll(t.Steps, deps)
		if err != nil {
			return nil, fmt.Errorf("submission type %q: %w", name, err)
		}
		out[name] = steps
	}
	return out, nil
}

// AssignmentStore builds the assignment resolver over the graded directory.
func (a *App) AssignmentStore() *repository.AssignmentStore {
	return repository.NewAssignmentStore(repository.AssignmentConfig{
		Root:         a.Paths.Graded,
		DefaultTotal: a.Grading.DefaultTotal,
		DefaultType:  a.Grading.DefaultType,
	}, a.Types())
}

// NewLock builds the configured pipeline lock. c may be nil for the file
// backend.
func (a *App) NewLock(c cache.Cache) (lock.Lock, error) {
	if a.Lock.Backend == LockBackendRedis {
		if c == nil {
			return nil, fmt.Errorf("redis lock requires a cache")
		}
		l, err := lock.NewRedisLock(c, lock.RedisConfig{
			Key:        a.Lock.Key,
			DisableKey: a.Lock.DisableKey,
			TTL:        a.Lock.TTL,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	l, err := lock.NewFileLock(lock.FileConfig{
		Dir:           a.Paths.Home,
		PIDFile:       a.Lock.PIDFile,
		DisableMarker: a.Lock.DisableMarker,
		ClearStale:    a.Lock.ClearStale,
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// NewCache connects to redis when an address is configured and returns nil
// otherwise.
func (a *App) NewCache() (cache.Cache, error) {
	if a.Redis.Addr == "" {
		return nil, nil
	}
	c, err := cache.NewRedisCacheWithConfig(&a.Redis)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
}
