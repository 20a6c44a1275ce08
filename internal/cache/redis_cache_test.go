package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisCache_StoreSent_Success(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(rdb, 10*time.Second)

	ctx := context.Background()
	sentAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreSent(ctx, "msg-42", "ext-123-abc", sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	key := "message:msg-42"

	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}

	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got sentValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}

	if got.MessageID != "ext-123-abc" {
		t.Fatalf("expected MessageID %q, got %q", "ext-123-abc", got.MessageID)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v, got %v", sentAt, got.SentAt)
	}
}

func TestRedisCache_StoreSent_OverwritesExistingValue(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	if err := cache.StoreSent(ctx, "msg-1", "first", time.Now()); err != nil {
		t.Fatalf("first StoreSent() error: %v", err)
	}
	if err := cache.StoreSent(ctx, "msg-1", "second", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("second StoreSent() error: %v", err)
	}

	raw, err := mr.Get("message:msg-1")
	if err != nil {
		t.Fatalf("failed to get key message:msg-1: %v", err)
	}

	var got sentValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}

	if got.MessageID != "second" {
		t.Fatalf("expected overwritten MessageID %q, got %q", "second", got.MessageID)
	}
}

func TestRedisCache_StoreSent_ContextCanceled(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(rdb, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreSent(ctx, "msg-1", "x", time.Now()); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
