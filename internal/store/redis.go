package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects to redis with short timeouts. Every key is namespaced with prefix.
func NewRedis(addr, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client, prefix: prefix}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

func (r *Redis) key(k Key) string { return r.prefix + string(k) }

// Get reads a value; redis.Nil maps to not found.
func (r *Redis) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	v, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Set writes a value with no expiry.
func (r *Redis) Set(ctx context.Context, key Key, value []byte) error {
	return r.Client.Set(ctx, r.key(key), value, 0).Err()
}

// Remove deletes key.
func (r *Redis) Remove(ctx context.Context, key Key) error {
	return r.Client.Del(ctx, r.key(key)).Err()
}

// SetMany writes the batch inside MULTI/EXEC.
func (r *Redis) SetMany(ctx context.Context, entries map[Key][]byte) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.key(k), v, 0)
		}
		return nil
	})
	return err
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
