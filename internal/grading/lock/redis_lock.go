package lock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"autograde/internal/common/cache"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultLockKey    = "gradepipe:lock"
	defaultDisableKey = "gradepipe:off"
	defaultLockTTL    = 10 * time.Minute
)

// RedisConfig configures a RedisLock.
type RedisConfig struct {
	Key        string
	DisableKey string
	TTL        time.Duration
}

// RedisLock holds the pipeline lock as an expiring key owned by "host:pid",
// for graders sharing one queue from several machines. A crashed holder's
// lock lapses after TTL, so a long run must Refresh between submissions.
type RedisLock struct {
	cache cache.Cache
	cfg   RedisConfig
	owner string

	mu   sync.Mutex
	held bool
}

// NewRedisLock creates a RedisLock for the current process.
func NewRedisLock(c cache.Cache, cfg RedisConfig) (*RedisLock, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Key == "" {
		cfg.Key = defaultLockKey
	}
	if cfg.DisableKey == "" {
		cfg.DisableKey = defaultDisableKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &RedisLock{cache: c, cfg: cfg, owner: host + ":" + strconv.Itoa(os.Getpid())}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.cache.Exists(ctx, l.cfg.DisableKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "check disable key failed")
	}
	if n > 0 {
		return appErr.New(appErr.PipelineDisabled).WithDetail("marker", l.cfg.DisableKey)
	}
	if l.held {
		return nil
	}
	ok, err := l.cache.TryLock(ctx, l.cfg.Key, l.owner, l.cfg.TTL)
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "acquire pipeline lock failed")
	}
	if !ok {
		holder, _ := l.cache.Get(ctx, l.cfg.Key)
		return appErr.New(appErr.PipelineActive).WithDetail("owner", holder)
	}
	l.held = true
	logger.Debug(ctx, "acquired pipeline lock", zap.String("key", l.cfg.Key), zap.String("owner", l.owner))
	return nil
}

func (l *RedisLock) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return appErr.New(appErr.LockFailed).WithMessage("pipeline lock is not held")
	}
	ok, err := l.cache.ExtendLock(ctx, l.cfg.Key, l.owner, l.cfg.TTL)
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "extend pipeline lock failed")
	}
	if !ok {
		l.held = false
		return appErr.New(appErr.LockFailed).WithMessage("pipeline lock was taken away")
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	ok, err := l.cache.Unlock(ctx, l.cfg.Key, l.owner)
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "release pipeline lock failed")
	}
	if !ok {
		logger.Warn(ctx, "pipeline lock no longer ours", zap.String("key", l.cfg.Key))
	}
	return nil
}

// Inspect reports the current holder. A key that exists is a live holder,
// since dead holders expire.
func (l *RedisLock) Inspect(ctx context.Context) (State, error) {
	var st State
	n, err := l.cache.Exists(ctx, l.cfg.DisableKey)
	if err != nil {
		return st, appErr.Wrapf(err, appErr.CacheError, "check disable key failed")
	}
	st.Disabled = n > 0

	owner, err := l.cache.Get(ctx, l.cfg.Key)
	if err != nil || owner == "" {
		return st, nil
	}
	st.Active = true
	st.Alive = true
	st.Owner = owner
	if _, pid, ok := strings.Cut(owner, ":"); ok {
		st.PID, _ = strconv.Atoi(pid)
	}
	if ttl, err := l.cache.TTL(ctx, l.cfg.Key); err == nil && ttl > 0 {
		st.Since = time.Now().Add(ttl - l.cfg.TTL)
	}
	return st, nil
}
