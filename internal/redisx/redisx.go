package redisx

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"
)

type Client struct{ Rdb *redis.Client }

func New(addr string, password string, db int) *Client {
    rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
    return &Client{Rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
    return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
    return c.Rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
    return c.Rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
    n, err := c.Rdb.Exists(ctx, key).Result()
    return n == 1, err
}

// TryLock takes a short single-flight lock. The TTL bounds how long a
// crashed holder can block others.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
    return c.Rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (c *Client) Unlock(ctx context.Context, key string) {
    _ = c.Rdb.Del(ctx, key).Err()
}
