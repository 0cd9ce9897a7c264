package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "chirho:ledger:"

// FingerprintCache stores recent payment fingerprints with a TTL.
type FingerprintCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewFingerprintCache constructs a cache over client.
func NewFingerprintCache(client goredis.UniversalClient, prefix string) (*FingerprintCache, error) {
	if client == nil {
		return nil, errors.New("fingerprint cache: nil redis client")
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &FingerprintCache{client: client, prefix: prefix}, nil
}

// Seen reports whether key was remembered and has not expired.
func (c *FingerprintCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Claim sets key with SET NX so only one caller holds it until ttl expires.
func (c *FingerprintCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

// Release deletes key.
func (c *FingerprintCache) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Remember stores key for ttl, overwriting any claim.
func (c *FingerprintCache) Remember(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Err()
}

// Connect opens a client and pings it. It returns nil when addr is empty or
// the server does not answer, so callers run without the cache.
func Connect(ctx context.Context, addr, password string, db int) *goredis.Client {
	if addr == "" {
		return nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
