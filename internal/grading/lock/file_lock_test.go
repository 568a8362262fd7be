package lock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	appErr "autograde/pkg/errors"
)

func newTestFileLock(t *testing.T, dir string, clearStale bool) *FileLock {
	t.Helper()
	l, err := NewFileLock(FileConfig{Dir: dir, ClearStale: clearStale})
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	return l
}

func TestFileLock_Exclusive(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first := newTestFileLock(t, dir, false)
	second := newTestFileLock(t, dir, false)

	if err := first.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := second.Acquire(ctx); !appErr.Is(err, appErr.PipelineActive) {
		t.Fatalf("expected PipelineActive, got %v", err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release of unheld lock: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultPIDFile)); err != nil {
		t.Fatal("unheld release removed the pid file")
	}

	if err := first.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := second.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release(ctx)
}

func TestFileLock_Disabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultDisableMarker), nil, 0644); err != nil {
		t.Fatal(err)
	}
	l := newTestFileLock(t, dir, false)
	if err := l.Acquire(context.Background()); !appErr.Is(err, appErr.PipelineDisabled) {
		t.Fatalf("expected PipelineDisabled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultPIDFile)); err == nil {
		t.Fatal("disabled pipeline should not create a pid file")
	}
}

func TestFileLock_Stale(t *testing.T) {
	tests := []struct {
		name       string
		clearStale bool
		wantErr    bool
	}{
		{name: "left for operator", clearStale: false, wantErr: true},
		{name: "cleared", clearStale: true, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			pidPath := filepath.Join(dir, DefaultPIDFile)
			if err := os.WriteFile(pidPath, []byte("424242\n"), 0644); err != nil {
				t.Fatal(err)
			}
			l := newTestFileLock(t, dir, tt.clearStale)
			l.alive = func(int) bool { return false }

			err := l.Acquire(context.Background())
			if tt.wantErr {
				if !appErr.Is(err, appErr.PipelineActive) {
					t.Fatalf("expected PipelineActive, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("acquire: %v", err)
			}
			data, _ := os.ReadFile(pidPath)
			if string(data) != strconv.Itoa(os.Getpid())+"\n" {
				t.Fatalf("pid file = %q", data)
			}
		})
	}
}

func TestFileLock_ReleaseKeepsForeignLock(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	l := newTestFileLock(t, dir, false)
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	pidPath := filepath.Join(dir, DefaultPIDFile)
	if err := os.WriteFile(pidPath, []byte("1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := l.Refresh(ctx); !appErr.Is(err, appErr.LockFailed) {
		t.Fatalf("expected LockFailed, got %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatal("foreign pid file was removed")
	}
}

func TestFileLock_Inspect(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	l := newTestFileLock(t, dir, false)

	st, err := l.Inspect(ctx)
	if err != nil || st.Active || st.Disabled {
		t.Fatalf("idle state = %+v, %v", st, err)
	}

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	st, err = l.Inspect(ctx)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !st.Active || !st.Alive || st.PID != os.Getpid() {
		t.Fatalf("held state = %+v", st)
	}
	_ = l.Release(ctx)
}
