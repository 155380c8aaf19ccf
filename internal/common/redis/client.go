package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/common/logger"
)

type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
	config *configtypes.RedisConfig
}

// Options converts cfg into go-redis options. A unix socket takes precedence
// over the TCP address and db -1 selects the server default database.
func Options(cfg *configtypes.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Network:      "tcp",
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: cfg.MinIdle,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.UnixSocket != "" {
		opts.Network = "unix"
		opts.Addr = cfg.UnixSocket
	}
	if opts.DB < 0 {
		opts.DB = 0
	}
	return opts
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(cfg *configtypes.RedisConfig, log *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := Options(cfg)
	client := &Client{
		rdb:    redis.NewClient(opts),
		logger: log,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis connection pool ready",
		logger.Label(logger.LabelInitRedis),
		zap.String("network", opts.Network),
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("min_idle", opts.MinIdleConns),
		zap.Int("pool_size", opts.PoolSize))

	return client, nil
}

func (c *Client) Ping(ctx context.Context) error {
	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		c.logger.Error("Redis ping failed", zap.Error(err))
		return err
	}

	if result != "PONG" {
		c.logger.Error("Redis ping returned unexpected response", zap.String("response", result))
		return fmt.Errorf("unexpected ping response: %s", result)
	}

	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	start := time.Now().UTC()

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	c.logger.Debug("Redis health check passed", zap.Duration("duration", time.Since(start)))
	return nil
}

// SetExpire stores value under key. A ttl of zero keeps the key forever.
func (c *Client) SetExpire(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.setBytes(ctx, key, []byte(value), ttl)
}

// Get returns the value under key, or "" when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, found, err := c.getBytes(ctx, key)
	if err != nil || !found {
		return "", err
	}
	return string(value), nil
}

// SetJSON stores v encoded as JSON.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}
	return c.setBytes(ctx, key, data, ttl)
}

// GetJSON decodes the JSON value under key into v. found is false when the
// key does not exist or holds an empty value.
func (c *Client) GetJSON(ctx context.Context, key string, v any) (found bool, err error) {
	data, found, err := c.getBytes(ctx, key)
	if err != nil || !found || len(data) == 0 {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode value for key %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("Redis DEL failed",
			zap.Strings("keys", keys),
			zap.Error(err))
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	result, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		c.logger.Error("Redis TTL failed",
			zap.String("key", key),
			zap.Error(err))
		return 0, fmt.Errorf("redis ttl failed: %w", err)
	}
	return result, nil
}

func (c *Client) Close() error {
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			c.logger.Error("Failed to close Redis client", zap.Error(err))
			return err
		}
		c.logger.Debug("Redis client closed")
	}
	return nil
}

func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

func (c *Client) setBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeValue(value, c.config.Compression)
	if err != nil {
		return err
	}

	if err := c.rdb.Set(ctx, key, encoded, ttl).Err(); err != nil {
		c.logger.Error("Redis SET failed",
			zap.String("key", key),
			zap.Duration("expiration", ttl),
			zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("Redis GET failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	value, err := decodeValue(raw, c.config.Compression)
	if err != nil {
		c.logger.Error("Redis value decode failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, err
	}
	return value, true, nil
}
