package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/connsweep/connection-sweeper/pkg/contact"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, time.Minute), mr
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Records: []contact.Record{
			{Name: "Jane Doe", EntityURN: "urn:li:fsd_profile:A", ConnectionURN: "urn:li:fsd_connection:1"},
		},
		Total:     1,
		FetchedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCache_RoundTrip(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "acct"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty cache = %v, want ErrCacheMiss", err)
	}

	if err := cache.Set(ctx, "acct", testSnapshot()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	snapshot, err := cache.Get(ctx, "acct")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(snapshot.Records) != 1 || snapshot.Records[0].Name != "Jane Doe" {
		t.Errorf("snapshot = %+v", snapshot)
	}
	if snapshot.Total != 1 {
		t.Errorf("Total = %d, want 1", snapshot.Total)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "acct", testSnapshot()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "acct"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after TTL = %v, want ErrCacheMiss", err)
	}
}

func TestCache_Invalidate(t *testing.T) {
	cache, _ := testCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "acct", testSnapshot()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Invalidate(ctx, "acct"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := cache.Get(ctx, "acct"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after invalidate = %v, want ErrCacheMiss", err)
	}
}

func TestCache_CorruptedEntryIsDropped(t *testing.T) {
	cache, mr := testCache(t)
	ctx := context.Background()

	mr.Set(redisKey("acct"), "{not json")

	if _, err := cache.Get(ctx, "acct"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on corrupt entry = %v, want ErrCacheMiss", err)
	}
	if mr.Exists(redisKey("acct")) {
		t.Error("corrupt entry should have been deleted")
	}
}

func TestCache_DisabledWithoutRedis(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, "acct", testSnapshot()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := cache.Get(ctx, "acct"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() = %v, want ErrCacheMiss when disabled", err)
	}
	if err := cache.Invalidate(ctx, "acct"); err != nil {
		t.Errorf("Invalidate() error = %v", err)
	}
}

func TestAccountKey(t *testing.T) {
	a := AccountKey("li_at=alpha")
	b := AccountKey("li_at=beta")

	if a == b {
		t.Error("distinct sessions must map to distinct keys")
	}
	if a != AccountKey("li_at=alpha") {
		t.Error("key derivation must be stable")
	}
	if len(a) != 16 {
		t.Errorf("key length = %d, want 16 hex chars", len(a))
	}
}
