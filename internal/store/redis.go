package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the client shared by the event queue and /healthz.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects lazily to addr. Reads may legitimately block for up to
// block (a BRPOP wait), so the read deadline sits one second past it.
func NewRedis(addr string, block time.Duration) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  block + time.Second,
		WriteTimeout: time.Second,
	})}
}

// Healthy pings the server within ctx. A nil receiver is unhealthy.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r != nil && r.Client != nil && r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
