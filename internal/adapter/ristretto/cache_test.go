package ristretto

import (
	"context"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "agent:agent-001", []byte(`{"id":"agent-001"}`), time.Minute); err != nil {
		t.Fatal(err)
	}

	val, found, err := c.Get(ctx, "agent:agent-001")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected hit after Set")
	}
	if string(val) != `{"id":"agent-001"}` {
		t.Errorf("value = %s", val)
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	_, found, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected miss for unknown key")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Error("expected miss after Delete")
	}

	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Error("Delete of unknown key should not error")
	}
}

func TestOverwrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v1"), time.Minute)
	_ = c.Set(ctx, "k", []byte("v2"), time.Minute)

	val, found, _ := c.Get(ctx, "k")
	if !found || string(val) != "v2" {
		t.Errorf("expected v2 after overwrite, got %q (found=%v)", val, found)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), 50*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if _, found, _ := c.Get(ctx, "short"); found {
		t.Error("expected miss after TTL expiry")
	}
}
