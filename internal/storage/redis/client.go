package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Options describe the shared session server.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	PoolSize    int
}

// Client is the connection shared by the session store and its change
// subscription.
type Client struct {
	*redis.Client
}

func NewClient(opts Options) *Client {
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}

	return &Client{
		Client: redis.NewClient(&redis.Options{
			Addr:        opts.Addr,
			Password:    opts.Password,
			DB:          opts.DB,
			DialTimeout: dial,
			PoolSize:    opts.PoolSize,
		}),
	}
}

// HealthCheck fails when the server cannot be reached or does not answer PONG.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "redisstore.HealthCheck"

	pong, err := c.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pong != "PONG" {
		return fmt.Errorf("%s: unexpected reply %q", op, pong)
	}

	return nil
}
