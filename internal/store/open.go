package store

import (
	"context"
	"fmt"
)

// Options selects and addresses a backend.
type Options struct {
	Backend     string // memory, redis or postgres
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// Backend is an opened Store with its health check.
type Backend struct {
	Store
	// Redis is set for the redis backend so the queue can share the client.
	Redis *Redis
	name  string
	ping  func(ctx context.Context) bool
	close func() error
}

// Open connects the backend named in opts. The postgres schema is created
// if missing.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	switch opts.Backend {
	case "memory", "":
		return &Backend{Store: NewMemory(), name: "memory"}, nil
	case "redis":
		r := NewRedis(opts.RedisAddr, opts.RedisPrefix)
		return &Backend{Store: r, Redis: r, name: "redis", ping: r.Healthy, close: r.Close}, nil
	case "postgres":
		db, err := NewDB(opts.DatabaseURL)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db schema: %w", err)
		}
		ping := func(ctx context.Context) bool { return db.Client.PingContext(ctx) == nil }
		return &Backend{Store: db, name: "db", ping: ping, close: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

// Health reports reachability of the backend by name.
func (b *Backend) Health(ctx context.Context) map[string]bool {
	if b.ping == nil {
		return map[string]bool{b.name: true}
	}
	return map[string]bool{b.name: b.ping(ctx)}
}

// Close releases the backend connection.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
