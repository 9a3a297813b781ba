package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestGet_MissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)
	b, err := c.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b != nil {
		t.Fatalf("expected miss, got %q", b)
	}
}

func TestSetGetInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	payload := []byte(`{"system_on":true,"mode":"AUTO"}`)

	if err := c.Set(ctx, "u1", payload); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(b) != string(payload) {
		t.Fatalf("expected %q, got %q", payload, b)
	}

	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if b, _ := c.Get(ctx, "u1"); b != nil {
		t.Fatalf("expected entry gone after invalidate, got %q", b)
	}
}

func TestSet_EntryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "u1", []byte(`{}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if b, _ := c.Get(ctx, "u1"); b != nil {
		t.Fatalf("expected entry expired, got %q", b)
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *StatusCache
	ctx := context.Background()

	if err := c.Set(ctx, "u1", []byte(`{}`)); err != nil {
		t.Fatalf("set on nil cache: %v", err)
	}
	if b, err := c.Get(ctx, "u1"); err != nil || b != nil {
		t.Fatalf("get on nil cache: %q/%v", b, err)
	}
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate on nil cache: %v", err)
	}
	if New(nil) != nil {
		t.Fatalf("New(nil) must return a nil cache")
	}
}
