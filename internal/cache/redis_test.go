package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient("not-a-url"); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestSetGet(t *testing.T) {
	client, _ := setupTestCache(t)
	ctx := context.Background()

	if err := client.Set(ctx, "greeting", "shalom", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := client.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "shalom" {
		t.Errorf("got %q, want shalom", got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	client, _ := setupTestCache(t)
	if _, err := client.Get(context.Background(), "nope"); err == nil {
		t.Error("expected redis.Nil for a missing key")
	}
}

func TestExpiration(t *testing.T) {
	client, mr := setupTestCache(t)
	ctx := context.Background()

	if err := client.Set(ctx, "ephemeral", "x", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	exists, err := client.Exists(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("key should have expired")
	}
}

func TestDelete(t *testing.T) {
	client, _ := setupTestCache(t)
	ctx := context.Background()

	client.Set(ctx, "a", "1", 0)
	client.Set(ctx, "b", "2", 0)
	if err := client.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		exists, _ := client.Exists(ctx, k)
		if exists {
			t.Errorf("key %s survived delete", k)
		}
	}
}

func TestPing(t *testing.T) {
	client, mr := setupTestCache(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Error("ping must fail after the server goes away")
	}
}
