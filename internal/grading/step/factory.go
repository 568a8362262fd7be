package step

import (
	"fmt"
	"strings"
	"time"

	"autograde/internal/grading/executor"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

// Config is the YAML form of one step in a submission type's pipeline.
type Config struct {
	Kind     string `yaml:"kind"`
	Label    string `yaml:"label"`
	Required *bool  `yaml:"required"`

	// compile, invoke-grader
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`

	// compile
	Artifact string `yaml:"artifact"`
	All      bool   `yaml:"all"`
	Pattern  string `yaml:"pattern"`
	Grade    string `yaml:"grade"`

	// copy-graders
	Common     *bool `yaml:"common"`
	Assignment *bool `yaml:"assignment"`

	// invoke-grader
	Requires string `yaml:"requires"`

	// verify-artifact
	Template string `yaml:"template"`

	// display-files
	Globs []string `yaml:"globs"`

	// unzip
	MaxBytes int64 `yaml:"maxBytes"`
}

// Deps are the collaborators steps are built with.
type Deps struct {
	Exec executor.Executor
	// DefaultTimeout applies to compile and grader steps without their own.
	DefaultTimeout time.Duration
}

// defaults per kind: display label and required flag.
var defaults = map[string]struct {
	label    string
	required bool
}{
	KindCompile:        {"Compiled", true},
	KindCopyGraders:    {"Copying grader files into workspace", true},
	KindInvokeGrader:   {"Grader", true},
	KindUnzip:          {"Unzipping files", false},
	KindVerifyArtifact: {"Verifying main file", true},
	KindDisplayFiles:   {"Displaying files", false},
}

// Build creates one step from its configuration.
func Build(cfg Config, deps Deps) (Step, error) {
	def, ok := defaults[cfg.Kind]
	if !ok {
		return nil, invalid(cfg, "unknown step kind")
	}
	label := cfg.Label
	if label == "" {
		label = def.label
	}
	required := def.required
	if cfg.Required != nil {
		required = *cfg.Required
	}
	base := newBase(cfg.Kind, label, required)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = deps.DefaultTimeout
	}

	switch cfg.Kind {
	case KindCompile:
		if deps.Exec == nil {
			return nil, invalid(cfg, "executor is required")
		}
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, invalid(cfg, "command is required")
		}
		grade, err := configuredGrade(cfg.Grade)
		if err != nil {
			return nil, invalid(cfg, err.Error())
		}
		return &Compile{
			Base:     base,
			exec:     deps.Exec,
			command:  cfg.Command,
			artifact: cfg.Artifact,
			all:      cfg.All,
			pattern:  cfg.Pattern,
			grade:    grade,
			timeout:  timeout,
		}, nil

	case KindCopyGraders:
		common := cfg.Common == nil || *cfg.Common
		assignment := cfg.Assignment == nil || *cfg.Assignment
		if !common && !assignment {
			return nil, invalid(cfg, "common and assignment graders are both disabled")
		}
		return &CopyGraders{Base: base, common: common, assignment: assignment}, nil

	case KindInvokeGrader:
		if deps.Exec == nil {
			return nil, invalid(cfg, "executor is required")
		}
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, invalid(cfg, "command is required")
		}
		return &InvokeGrader{
			Base:     base,
			exec:     deps.Exec,
			command:  cfg.Command,
			requires: cfg.Requires,
			timeout:  timeout,
		}, nil

	case KindUnzip:
		maxBytes := cfg.MaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultMaxExtractBytes
		}
		return &Unzip{Base: base, maxBytes: maxBytes}, nil

	case KindVerifyArtifact:
		if cfg.Template == "" {
			return nil, invalid(cfg, "template is required")
		}
		return &VerifyArtifact{Base: base, template: cfg.Template}, nil

	case KindDisplayFiles:
		if len(cfg.Globs) == 0 {
			return nil, invalid(cfg, "at least one glob is required")
		}
		return &DisplayFiles{Base: base, globs: cfg.Globs}, nil
	}
	return nil, invalid(cfg, "unknown step kind")
}

// BuildAll builds an ordered pipeline.
func BuildAll(cfgs []Config, deps Deps) ([]Step, error) {
	steps := make([]Step, 0, len(cfgs))
	for i, cfg := range cfgs {
		s, err := Build(cfg, deps)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.InvalidStepConfig, "step %d: %s", i+1, err.Error())
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// configuredGrade parses a compile step's success grade; empty means OK.
func configuredGrade(s string) (model.Grade, error) {
	if s == "" {
		return model.OKGrade, nil
	}
	g, err := model.ParseGrade(s)
	if err != nil {
		return model.NoGrade, err
	}
	if g.IsERR() {
		return model.NoGrade, fmt.Errorf("grade ERR is not a success grade")
	}
	return g, nil
}

func invalid(cfg Config, reason string) error {
	return appErr.Newf(appErr.InvalidStepConfig, "%s step: %s", cfg.Kind, reason).
		WithDetail("kind", cfg.Kind)
}
