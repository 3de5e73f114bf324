package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Client is a small read-through cache for the public catalog. Lookups
// and stores are best effort; callers treat any error like a miss.
type Client struct {
	redisdb *redis.Client
	ttl     time.Duration
}

func New(cfg Config) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}

	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb, ttl: cfg.TTL}
}

func (c *Client) GetJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := c.redisdb.Get(ctx, key).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}

	return json.Unmarshal(raw, out)
}

func (c *Client) SetJSON(ctx context.Context, key string, val interface{}) error {
	raw, err := json.Marshal(val)

	if err != nil {
		return err
	}

	return c.redisdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate drops keys after an admin mutation so public reads do not
// serve a stale catalog for a full TTL.
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return c.redisdb.Del(ctx, keys...).Err()
}

// Ping checks redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}
