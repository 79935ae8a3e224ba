package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client, mr
}

func TestCacheVersionInitialises(t *testing.T) {
	cache, _, mr := newTestCache(t)
	ver, err := cache.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if ver != 1 {
		t.Fatalf("expected version 1, got %d", ver)
	}
	if got, _ := mr.Get(cacheVersionKey); got != "1" {
		t.Fatalf("expected stored version 1, got %q", got)
	}
}

func TestCacheBuildKeyIncludesVersion(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "summary", "maria", "2025-03-15")
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if key != "dashboard:summary:maria:2025-03-15:1" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	key, _ = cache.BuildKey(ctx, "summary", "maria", "2025-03-15")
	if key != "dashboard:summary:maria:2025-03-15:2" {
		t.Fatalf("expected bumped key, got %q", key)
	}
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	var cache *Cache
	key, err := cache.BuildKey(context.Background(), "expenses", "public")
	if err != nil || key != "dashboard:expenses:public" {
		t.Fatalf("unexpected key %q err %v", key, err)
	}
	var out []string
	err = cache.FetchJSON(context.Background(), key, &out, func(context.Context) (any, error) {
		return []string{"a"}, nil
	})
	if err != nil || len(out) != 1 {
		t.Fatalf("unexpected fetch result %v err %v", out, err)
	}
}

func TestFetchJSONStoresWithTTL(t *testing.T) {
	cache, _, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	var first, second map[string]int
	if err := cache.FetchJSON(ctx, "dashboard:test:1", &first, load); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := cache.FetchJSON(ctx, "dashboard:test:1", &second, load); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 1 || second["n"] != 1 {
		t.Fatalf("expected cached value, calls=%d value=%v", calls, second)
	}
	if ttl := mr.TTL("dashboard:test:1"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := cache.FetchJSON(ctx, "dashboard:test:1", &second, load); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload after expiry, calls=%d", calls)
	}
}

func TestFetchJSONLoaderErrorIsNotCached(t *testing.T) {
	cache, _, mr := newTestCache(t)
	boom := errors.New("boom")
	var out any
	err := cache.FetchJSON(context.Background(), "dashboard:fail:1", &out, func(context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mr.Exists("dashboard:fail:1") {
		t.Fatalf("failed loads must not be cached")
	}
}

func TestFetchJSONRequiresLoader(t *testing.T) {
	cache, _, _ := newTestCache(t)
	var out any
	if err := cache.FetchJSON(context.Background(), "k", &out, nil); err == nil {
		t.Fatalf("expected error without loader")
	}
}

func TestListenForInvalidationAppliesHigherVersions(t *testing.T) {
	cache, client, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := cache.Version(ctx); err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := cache.ListenForInvalidation(ctx, ""); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := client.Publish(ctx, BumpChannel, "7").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ver, err := cache.Version(ctx)
		if err != nil {
			t.Fatalf("version: %v", err)
		}
		if ver == 7 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("version not applied, still %d", ver)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := client.Publish(ctx, BumpChannel, "3").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if ver, _ := cache.Version(ctx); ver != 7 {
		t.Fatalf("stale bump must not lower the version, got %d", ver)
	}
}
