package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tabletop-backend/internal/config"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func checkTracker(t *testing.T, tr Tracker, c *clock) {
	t.Helper()
	ctx := context.Background()

	if err := tr.Touch(ctx, "g1", "bob"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	c.t = c.t.Add(2 * time.Second)
	if err := tr.Touch(ctx, "g1", "alice"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	_ = tr.Touch(ctx, "g2", "carol")

	online, err := tr.Online(ctx, "g1")
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if len(online) != 2 || online[0] != "alice" || online[1] != "bob" {
		t.Fatalf("online = %v, want [alice bob]", online)
	}

	c.t = c.t.Add(9 * time.Second)
	online, _ = tr.Online(ctx, "g1")
	if len(online) != 1 || online[0] != "alice" {
		t.Fatalf("after expiry online = %v, want [alice]", online)
	}

	empty, _ := tr.Online(ctx, "unknown")
	if len(empty) != 0 {
		t.Fatalf("unknown game online = %v", empty)
	}

	if err := tr.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryTracker(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	tr := NewMemoryTracker(10 * time.Second)
	tr.now = c.now
	checkTracker(t, tr, c)
}

func TestRedisTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c := &clock{t: time.Unix(1_700_000_000, 0)}
	tr := NewRedisTracker(rdb, 10*time.Second)
	tr.now = c.now
	t.Cleanup(func() { _ = tr.Close() })

	checkTracker(t, tr, c)

	if ttl := mr.TTL("presence:game:g1"); ttl <= 0 || ttl > 20*time.Second {
		t.Fatalf("key ttl = %v", ttl)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, ok := New(config.RedisConfig{}, time.Second).(*MemoryTracker); !ok {
		t.Fatal("empty address should use memory tracker")
	}

	mr := miniredis.RunT(t)
	tr := New(config.RedisConfig{Addr: mr.Addr()}, time.Second)
	t.Cleanup(func() { _ = tr.Close() })
	if _, ok := tr.(*RedisTracker); !ok {
		t.Fatal("address should use redis tracker")
	}
	if err := tr.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
