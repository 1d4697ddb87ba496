package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options describes how to reach Redis. A non-empty Socket switches to a unix socket connection.
type Options struct {
	Host     string
	Port     int
	Password string
	Socket   string
	DB       int
}

// ClientOptions converts Options into go-redis options.
func (o Options) ClientOptions() *redis.Options {
	opts := &redis.Options{
		Network:  "tcp",
		Addr:     net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Password: o.Password,
		DB:       o.DB,
	}
	if o.Socket != "" {
		opts.Network = "unix"
		opts.Addr = o.Socket
	}
	return opts
}

// New creates a new Redis client.
func New(ctx context.Context, o Options) (*redis.Client, error) {
	client := redis.NewClient(o.ClientOptions())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
