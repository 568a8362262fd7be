package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autograde/internal/grading/executor"
	"autograde/internal/grading/lock"
	"autograde/internal/grading/step"
	appErr "autograde/pkg/errors"
)

const minimalConfig = `
paths:
  submitted: /srv/grading/submitted
  graded: /srv/grading/graded
  workspace: /srv/grading/zone
submissionTypes:
  java:
    ext: java
    steps:
      - kind: compile
        command: javac ${filename}
        artifact: ${name}.class
      - kind: invoke-grader
        command: java ${assignment}Grader ${filename} ${compiled}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autograde.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.Grading.Precision != 2 || cfg.Grading.DefaultTotal != 5 || *cfg.Grading.ResubmissionPenalty != -0.1 {
		t.Errorf("grading defaults = %+v", cfg.Grading)
	}
	if cfg.Grading.DefaultType != "java" || cfg.Grading.ResultExt != "txt" {
		t.Errorf("type/ext defaults = %q/%q", cfg.Grading.DefaultType, cfg.Grading.ResultExt)
	}
	if cfg.Paths.Graders != "/srv/grading/graders" || cfg.Paths.Home != "/srv/grading" {
		t.Errorf("path defaults = %+v", cfg.Paths)
	}
	if cfg.Lock.Backend != LockBackendFile || cfg.Lock.PIDFile != lock.DefaultPIDFile || cfg.Lock.ClearStale {
		t.Errorf("lock defaults = %+v", cfg.Lock)
	}
	if cfg.Lock.TTL != 10*time.Minute || cfg.Lock.RefreshInterval != 10*time.Minute/3 {
		t.Errorf("lock lease defaults = %v/%v", cfg.Lock.TTL, cfg.Lock.RefreshInterval)
	}
	if cfg.Progress.TTL != 24*time.Hour || cfg.Report.CacheTTL != 30*time.Second {
		t.Errorf("progress/report defaults = %+v %+v", cfg.Progress, cfg.Report)
	}
}

func TestLoad_ExplicitZeroPrecision(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+"grading:\n  precision: 0\n  resubmissionPenalty: 0\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := cfg.Settings()
	if s.Precision != 0 || s.ResubmissionPenalty != 0 {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing queue",
			body:    "paths:\n  graded: /g\n  workspace: /w\n",
			wantErr: "paths.submitted is required",
		},
		{
			name:    "no types",
			body:    "paths:\n  submitted: /s\n  graded: /g\n  workspace: /w\n",
			wantErr: "at least one submission type",
		},
		{
			name:    "redis lock without redis",
			body:    minimalConfig + "lock:\n  backend: redis\n",
			wantErr: "redis addr is required",
		},
		{
			name:    "renewal slower than lease",
			body:    minimalConfig + "lock:\n  ttl: 1m\n  refreshInterval: 2m\n",
			wantErr: "lock.refreshInterval must be shorter",
		},
		{
			name:    "unknown backend",
			body:    minimalConfig + "lock:\n  backend: etcd\n",
			wantErr: "unknown lock backend",
		},
		{
			name:    "undefined default type",
			body:    minimalConfig + "grading:\n  defaultType: cpp\n",
			wantErr: "default submission type \"cpp\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_BadLatePolicy(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"latePolicies:\n  A01: [\"5x:-1\"]\n"))
	if !appErr.Is(err, appErr.InvalidLatePolicy) {
		t.Fatalf("err = %v, want InvalidLatePolicy", err)
	}
}

func TestApp_Pipelines(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pipelines, err := cfg.Pipelines(step.Deps{Exec: executor.New(executor.Config{})})
	if err != nil {
		t.Fatalf("pipelines: %v", err)
	}
	if got := len(pipelines["java"]); got != 2 {
		t.Fatalf("java steps = %d, want 2", got)
	}
	if types := cfg.Types(); types["java"].Ext != "java" || types["java"].Name != "java" {
		t.Errorf("types = %+v", types)
	}

	cfg.SubmissionTypes["java"] = SubmissionTypeConfig{Ext: "java", Steps: []step.Config{{Kind: "bogus"}}}
	if _, err := cfg.Pipelines(step.Deps{}); !appErr.Is(err, appErr.InvalidStepConfig) {
		t.Errorf("err = %v, want InvalidStepConfig", err)
	}
}

func TestApp_NewLock(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Paths.Home = t.TempDir()
	l, err := cfg.NewLock(nil)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if _, ok := l.(*lock.FileLock); !ok {
		t.Errorf("lock = %T, want *lock.FileLock", l)
	}

	cfg.Lock.Backend = LockBackendRedis
	if _, err := cfg.NewLock(nil); err == nil {
		t.Error("redis lock without cache should fail")
	}
}
