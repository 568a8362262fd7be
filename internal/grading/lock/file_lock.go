package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	DefaultPIDFile       = "gradepipe.pid"
	DefaultDisableMarker = "gradepipe.off"
)

// FileConfig configures a FileLock.
type FileConfig struct {
	// Dir holds the pid file and the disable marker.
	Dir           string
	PIDFile       string
	DisableMarker string
	// ClearStale removes a pid file whose process is gone instead of
	// waiting for an operator to do it.
	ClearStale bool
}

// FileLock is a pid file created with O_EXCL. A disable marker next to it
// switches the pipeline off.
type FileLock struct {
	cfg   FileConfig
	pid   int
	alive func(pid int) bool

	mu   sync.Mutex
	held bool
}

// NewFileLock creates a FileLock for the current process.
func NewFileLock(cfg FileConfig) (*FileLock, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("lock dir is required")
	}
	if cfg.PIDFile == "" {
		cfg.PIDFile = DefaultPIDFile
	}
	if cfg.DisableMarker == "" {
		cfg.DisableMarker = DefaultDisableMarker
	}
	return &FileLock{cfg: cfg, pid: os.Getpid(), alive: processAlive}, nil
}

func (l *FileLock) pidPath() string     { return filepath.Join(l.cfg.Dir, l.cfg.PIDFile) }
func (l *FileLock) disablePath() string { return filepath.Join(l.cfg.Dir, l.cfg.DisableMarker) }

func (l *FileLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fsutil.Exists(l.disablePath()) {
		return appErr.New(appErr.PipelineDisabled).WithDetail("marker", l.disablePath())
	}
	if l.held {
		return nil
	}

	err := l.create()
	if errors.Is(err, fs.ErrExist) {
		pid, readErr := readPID(l.pidPath())
		if readErr == nil && pid > 0 && !l.alive(pid) {
			logger.Warn(ctx, "pipeline lock held by a dead process",
				zap.Int("pid", pid), zap.String("lock", l.pidPath()), zap.Bool("clear_stale", l.cfg.ClearStale))
			if l.cfg.ClearStale {
				if rmErr := os.Remove(l.pidPath()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					return appErr.Wrapf(rmErr, appErr.LockFailed, "remove stale lock failed")
				}
				err = l.create()
			}
		}
		if errors.Is(err, fs.ErrExist) {
			return appErr.New(appErr.PipelineActive).WithDetail("pid", pid)
		}
	}
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "create lock file failed")
	}
	l.held = true
	logger.Debug(ctx, "acquired pipeline lock", zap.String("lock", l.pidPath()), zap.Int("pid", l.pid))
	return nil
}

func (l *FileLock) create() error {
	f, err := os.OpenFile(l.pidPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(strconv.Itoa(l.pid) + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.pidPath())
	}
	return err
}

func (l *FileLock) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return appErr.New(appErr.LockFailed).WithMessage("pipeline lock is not held")
	}
	pid, err := readPID(l.pidPath())
	if err != nil || pid != l.pid {
		l.held = false
		return appErr.New(appErr.LockFailed).WithMessage("pipeline lock was taken away")
	}
	return nil
}

// Release removes the pid file if it still names this process.
func (l *FileLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	pid, err := readPID(l.pidPath())
	if err != nil || pid != l.pid {
		logger.Warn(ctx, "pipeline lock no longer ours", zap.Int("pid", pid), zap.Error(err))
		return nil
	}
	if err := os.Remove(l.pidPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErr.Wrapf(err, appErr.LockFailed, "remove lock file failed")
	}
	logger.Debug(ctx, "released pipeline lock", zap.String("lock", l.pidPath()))
	return nil
}

func (l *FileLock) Inspect(ctx context.Context) (State, error) {
	st := State{Disabled: fsutil.Exists(l.disablePath())}
	info, err := os.Stat(l.pidPath())
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, appErr.Wrapf(err, appErr.LockFailed, "stat lock file failed")
	}
	st.Active = true
	st.Since = info.ModTime()
	pid, err := readPID(l.pidPath())
	if err != nil {
		logger.Warn(ctx, "unreadable lock file", zap.Error(err))
		return st, nil
	}
	st.PID = pid
	st.Owner = strconv.Itoa(pid)
	st.Alive = l.alive(pid)
	return st, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("bad pid in %s: %w", path, err)
	}
	return pid, nil
}
