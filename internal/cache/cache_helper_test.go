package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheManager(client), mr
}

func TestCacheOrExecute(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (any, error) {
		calls++
		return &models.Subject{ID: 7, Name: "Physics", Code: "PHY"}, nil
	}

	var first, second models.Subject
	if err := cm.Catalog.CacheOrExecute(ctx, "subjects:7", &first, time.Minute, fetch); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := cm.Catalog.CacheOrExecute(ctx, "subjects:7", &second, time.Minute, fetch); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
	if second.Name != "Physics" {
		t.Errorf("cached value = %+v", second)
	}
	if !mr.Exists("catalog:subjects:7") {
		t.Error("expected prefixed key in redis")
	}
}

func TestCacheOrExecuteFetchError(t *testing.T) {
	cm, _ := newTestManager(t)
	want := errors.New("boom")

	var dest models.Subject
	err := cm.Catalog.CacheOrExecute(context.Background(), "k", &dest, time.Minute, func() (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestInvalidatePattern(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	params := models.ListParams{Page: 1, PerPage: 10}
	listKey := ListKey("u1", params)
	for _, key := range []string{listKey, ListKey("u2", params), "id:1"} {
		if err := cm.Assessment.Set(ctx, key, "x", time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}

	InvalidateAssessmentCache(ctx, cm, 1)

	if mr.Exists("assessment:" + listKey) {
		t.Error("list key should be invalidated")
	}
	if mr.Exists("assessment:id:1") {
		t.Error("id key should be deleted")
	}
}

func TestResultStatsInvalidation(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	type stats struct{ Finished int }
	calls := 0
	load := func() (any, error) {
		calls++
		return stats{Finished: calls}, nil
	}

	var got stats
	for range 2 {
		if err := cm.Result.CacheOrExecute(ctx, StatsKey(3), &got, ResultCacheConfig.TTL, load); err != nil {
			t.Fatalf("CacheOrExecute: %v", err)
		}
	}
	if calls != 1 || !mr.Exists("result:assessment:3:stats") {
		t.Fatalf("calls = %d, want one load and a cached key", calls)
	}

	InvalidateResultCache(ctx, cm, 3)
	if mr.Exists("result:assessment:3:stats") {
		t.Error("attempt change should drop the stats")
	}

	_ = cm.Result.CacheOrExecute(ctx, StatsKey(3), &got, ResultCacheConfig.TTL, load)
	InvalidateAssessmentCache(ctx, cm, 3)
	if mr.Exists("result:assessment:3:stats") {
		t.Error("assessment change should drop the stats")
	}
	if got.Finished != 2 {
		t.Errorf("Finished = %d, want the reloaded value 2", got.Finished)
	}
}

func TestListKeyStable(t *testing.T) {
	a := models.ListParams{Page: 2, PerPage: 20, SearchKeyword: "alg", Filters: map[string]string{"b": "2", "a": "1"}, Include: []string{"groups", "questions"}}
	b := models.ListParams{Page: 2, PerPage: 20, SearchKeyword: "alg", Filters: map[string]string{"a": "1", "b": "2"}, Include: []string{"questions", "groups"}}
	if ListKey("s", a) != ListKey("s", b) {
		t.Error("keys differ for equivalent params")
	}
	b.Page = 3
	if ListKey("s", a) == ListKey("s", b) {
		t.Error("keys should differ when page changes")
	}
}

func TestNilClientDegrades(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	var dest string
	calls := 0
	err := cm.Question.CacheOrExecute(ctx, "k", &dest, time.Minute, func() (any, error) {
		calls++
		return "fresh", nil
	})
	if err != nil || dest != "fresh" || calls != 1 {
		t.Fatalf("dest=%q calls=%d err=%v", dest, calls, err)
	}
	if err := cm.HealthCheck(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("HealthCheck() = %v, want ErrCacheNotAvailable", err)
	}
}
