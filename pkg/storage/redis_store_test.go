package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type mockRedisSetCall struct {
	key        string
	value      interface{}
	expiration time.Duration
}

type mockRedisClient struct {
	mu sync.Mutex

	sets []mockRedisSetCall
	gets []string

	values map[string]string
	getErr error
	setErr error
}

func (c *mockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets = append(c.gets, key)
	if c.getErr != nil {
		return redis.NewStringResult("", c.getErr)
	}
	if v, ok := c.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, mockRedisSetCall{key: key, value: value, expiration: expiration})
	if c.setErr != nil {
		return redis.NewStatusResult("", c.setErr)
	}
	if c.values == nil {
		c.values = make(map[string]string)
	}
	c.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_PrefixAndKeying(t *testing.T) {
	client := &mockRedisClient{}
	store := NewRedisStore(client, WithRedisPrefix("pfx:"))

	if store.Prefix() != "pfx:" {
		t.Fatalf("Prefix() got %q", store.Prefix())
	}

	ctx := context.Background()
	if err := store.Set(ctx, "cart", "[]"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if len(client.sets) != 1 || client.sets[0].key != "pfx:cart" {
		t.Fatalf("Set() calls: %+v", client.sets)
	}
	if client.sets[0].expiration != 0 {
		t.Errorf("default expiration = %v, want 0", client.sets[0].expiration)
	}

	v, found, err := store.Get(ctx, "cart")
	if err != nil || !found || v != "[]" {
		t.Fatalf("Get() = %q, %v, %v", v, found, err)
	}
	if client.gets[0] != "pfx:cart" {
		t.Errorf("Get() key = %q", client.gets[0])
	}
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	store := NewRedisStore(&mockRedisClient{})
	if store.Prefix() != "gomarketplace:" {
		t.Errorf("Prefix() = %q, want gomarketplace:", store.Prefix())
	}
}

func TestRedisStore_TTL(t *testing.T) {
	client := &mockRedisClient{}
	store := NewRedisStore(client, WithRedisTTL(time.Hour))

	if err := store.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if client.sets[0].expiration != time.Hour {
		t.Errorf("expiration = %v, want 1h", client.sets[0].expiration)
	}
}

func TestRedisStore_MissingKey(t *testing.T) {
	store := NewRedisStore(&mockRedisClient{})

	v, found, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if found || v != "" {
		t.Errorf("Get(missing) = %q, %v", v, found)
	}
}

func TestRedisStore_BackendErrors(t *testing.T) {
	boom := errors.New("connection refused")
	client := &mockRedisClient{getErr: boom, setErr: boom}
	store := NewRedisStore(client)

	ctx := context.Background()
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want %v", err, boom)
	}
	if err := store.Set(ctx, "k", "v"); !errors.Is(err, boom) {
		t.Errorf("Set() error = %v, want %v", err, boom)
	}
}

func TestRedisStore_Closed(t *testing.T) {
	client := &mockRedisClient{}
	store := NewRedisStore(client)
	_ = store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after Close: got %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close: got %v", err)
	}
	if len(client.sets) != 0 || len(client.gets) != 0 {
		t.Error("closed store should not reach the client")
	}
}
