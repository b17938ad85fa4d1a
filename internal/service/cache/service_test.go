package cache

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"
)

type testPayload struct {
	Name string `json:"name"`
}

func newTestCacheService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mini.Addr())
	if err != nil {
		t.Fatalf("failed to split address: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{net.JoinHostPort(host, portStr)},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		t.Fatalf("failed to ping miniredis: %v", err)
	}
	svc := &Service{client: client, logger: logger}

	t.Cleanup(func() {
		_ = svc.Close()
		mini.Close()
	})

	return svc, mini
}

func TestCacheServiceSetGetAndExists(t *testing.T) {
	svc, mini := newTestCacheService(t)
	ctx := context.Background()

	value := testPayload{Name: "value"}
	if err := svc.Set(ctx, "key", value, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got testPayload
	found, err := svc.Get(ctx, "key", &got)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected key to be found")
	}
	if got.Name != "value" {
		t.Fatalf("unexpected value: %+v", got)
	}

	exists, err := svc.Exists(ctx, "key")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected key to exist")
	}

	mini.FastForward(2 * time.Minute)

	found, err = svc.Get(ctx, "key", &got)
	if err != nil {
		t.Fatalf("get after expire failed: %v", err)
	}
	if found {
		t.Fatalf("expected key to expire")
	}
}

func TestCacheServiceGetMissingKey(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	var got testPayload
	found, err := svc.Get(ctx, "absent", &got)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Fatalf("expected miss for absent key")
	}
}

func TestCacheServiceMSetAndDelMany(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	pairs := map[string]any{
		"a": testPayload{Name: "A"},
		"b": testPayload{Name: "B"},
	}
	if err := svc.MSet(ctx, pairs, time.Minute); err != nil {
		t.Fatalf("mset failed: %v", err)
	}

	var decoded testPayload
	found, err := svc.Get(ctx, "a", &decoded)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || decoded.Name != "A" {
		t.Fatalf("unexpected decoded value: found=%v %+v", found, decoded)
	}

	count, err := svc.DelMany(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("delmany failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deletions, got %d", count)
	}
}

func TestCacheServiceStats(t *testing.T) {
	svc, _ := newTestCacheService(t)
	ctx := context.Background()

	var got testPayload
	if _, err := svc.Get(ctx, "absent", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if err := svc.Set(ctx, "key", testPayload{Name: "value"}, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := svc.Get(ctx, "key", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.KeyCount != 1 {
		t.Fatalf("expected 1 key, got %d", stats.KeyCount)
	}
}

func TestCacheServiceCorruptEntryCountsAsMiss(t *testing.T) {
	svc, mini := newTestCacheService(t)
	ctx := context.Background()

	if err := mini.Set("key", "not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var got testPayload
	if _, err := svc.Get(ctx, "key", &got); err == nil {
		t.Fatalf("expected decode failure")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Hits != 0 {
		t.Fatalf("corrupt entry must not count as a hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", stats.Misses)
	}
}
