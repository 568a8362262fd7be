package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"autograde/internal/common/cache"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

func TestProgressRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatal(err)
	}
	repo := NewProgressRepository(c, time.Hour)
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !appErr.Is(err, appErr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := repo.Save(ctx, model.Progress{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}

	p := model.Progress{RunID: "run-1", State: model.RunRunning, Current: "JohnA01-20140101-1200.java", Graded: 2}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != model.RunRunning || got.Graded != 2 || got.Current != p.Current {
		t.Fatalf("progress = %+v", got)
	}
	latest, err := repo.Latest(ctx)
	if err != nil || latest.RunID != "run-1" {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	if ttl := mr.TTL(progressKeyPrefix + "run-1"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}
