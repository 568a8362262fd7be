package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxOutputBytes = 1 << 20
	// waitDelay bounds how long output pipes are drained after the program
	// exits, in case a background child still holds them open.
	waitDelay = 2 * time.Second
)

// Request describes one external program run inside the workspace.
type Request struct {
	Cmd []string
	Dir string
	Env []string
	// Timeout of zero waits for the program however long it takes.
	Timeout time.Duration
	// MergeOutput sends stderr into the stdout buffer, as compilers are read.
	MergeOutput bool
}

// Result is the captured outcome of a finished program.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
}

// Executor runs external programs. A program that starts and exits non-zero
// is a normal Result; only failing to run it at all is an error.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Config holds executor limits.
type Config struct {
	MaxOutputBytes int64
}

// LocalExecutor runs programs as child processes of the pipeline.
type LocalExecutor struct {
	cfg Config
}

// New creates a LocalExecutor.
func New(cfg Config) *LocalExecutor {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &LocalExecutor{cfg: cfg}
}

func (e *LocalExecutor) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Cmd) == 0 {
		return Result{}, appErr.ValidationError("cmd", "required")
	}

	cmd := exec.Command(req.Cmd[0], req.Cmd[1:]...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}
	setProcessGroup(cmd)

	stdout := newCappedBuffer(e.cfg.MaxOutputBytes)
	stderr := stdout
	if !req.MergeOutput {
		stderr = newCappedBuffer(e.cfg.MaxOutputBytes)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, appErr.Wrapf(err, appErr.GraderError, "start %s failed", req.Cmd[0])
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var timer <-chan time.Time
		if req.Timeout > 0 {
			t := time.NewTimer(req.Timeout)
			defer t.Stop()
			timer = t.C
		}
		select {
		case <-ctx.Done():
			killProcessGroup(cmd)
		case <-timer:
			timedOut.Store(true)
			killProcessGroup(cmd)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Warn(ctx, "external program left children holding its output",
			zap.String("cmd", req.Cmd[0]))
		killProcessGroup(cmd)
	}

	res := Result{
		ExitCode:  exitCodeFromErr(waitErr, cmd.ProcessState),
		Stdout:    stdout.String(),
		TimedOut:  timedOut.Load(),
		Truncated: stdout.truncated,
		Duration:  time.Since(start),
	}
	if !req.MergeOutput {
		res.Stderr = stderr.String()
		res.Truncated = res.Truncated || stderr.truncated
	}
	if res.TimedOut {
		res.ExitCode = -1
		logger.Warn(ctx, "external program timed out",
			zap.String("cmd", req.Cmd[0]), zap.Duration("timeout", req.Timeout))
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !res.TimedOut {
		return res, appErr.Wrapf(ctxErr, appErr.Timeout, "%s interrupted", req.Cmd[0])
	}
	return res, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// cappedBuffer keeps the first max bytes written and drops the rest
// without failing the writer.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + fmt.Sprintf("\n[output truncated at %d bytes]\n", b.max)
	}
	return b.buf.String()
}
