package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/clickreward-backend/internal/config"
)

// ClickDeduper remembers click fingerprints for a window.
// FirstSeen reports true only for the first call with a key inside the window.
// Forget drops a key whose click was never stored.
type ClickDeduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// RedisDeduper uses SET NX with a TTL so several API instances share state.
type RedisDeduper struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDeduper(cfg config.RedisConfig) (*RedisDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisDeduperWithClient(client, ""), nil
}

func NewRedisDeduperWithClient(client *redis.Client, keyPrefix string) *RedisDeduper {
	if keyPrefix == "" {
		keyPrefix = "click:seen:"
	}
	return &RedisDeduper{client: client, keyPrefix: keyPrefix}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark click fingerprint: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("forget click fingerprint: %w", err)
	}
	return nil
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

// MemoryDeduper is the single-process fallback.
type MemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	sweepAt time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{entries: map[string]time.Time{}, now: time.Now}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.After(d.sweepAt) {
		for k, exp := range d.entries {
			if !now.Before(exp) {
				delete(d.entries, k)
			}
		}
		d.sweepAt = now.Add(time.Minute)
	}

	if exp, ok := d.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.entries[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

var (
	_ ClickDeduper = (*RedisDeduper)(nil)
	_ ClickDeduper = (*MemoryDeduper)(nil)
)
