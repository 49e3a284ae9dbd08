// Package cache provides a small byte-oriented key/value cache with TTLs and
// two drivers: Redis for multi-instance deployments and ristretto in-process.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache: miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the counter at key and returns the new
	// value. ttl applies only when the increment creates the key.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Prefixed namespaces every key of c with prefix.
func Prefixed(c Cache, prefix string) Cache {
	if prefix == "" {
		return c
	}
	return &prefixed{inner: c, prefix: prefix + ":"}
}

type prefixed struct {
	inner  Cache
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.inner.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}

func (p *prefixed) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return p.inner.Incr(ctx, p.prefix+key, ttl)
}
