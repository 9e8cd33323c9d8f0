package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient connects and pings once so a bad address fails at startup rather
// than on the first event.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Client{Client: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	return c.Client.Close()
}
