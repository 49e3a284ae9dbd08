package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

var errCounterDropped = errors.New("cache: counter write dropped")

type MemoryOptions struct {
	NumCounters int64
	MaxCost     int64
}

type memoryCache struct {
	store *ristretto.Cache[string, []byte]
	// counters serializes Incr so concurrent increments are not lost.
	counters sync.Mutex
}

func NewMemory(opts MemoryOptions) (Cache, error) {
	if opts.NumCounters == 0 {
		opts.NumCounters = 100_000
	}
	if opts.MaxCost == 0 {
		opts.MaxCost = 64 << 20
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &memoryCache{store: store}, nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

// Set waits for the write buffer so a following Get observes the value.
func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.store.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl)
	c.store.Wait()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.store.Del(key)
	return nil
}

// Incr keeps the remaining TTL of an existing counter.
func (c *memoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.counters.Lock()
	defer c.counters.Unlock()

	var n int64
	if v, ok := c.store.Get(key); ok {
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
		if remaining, ok := c.store.GetTTL(key); ok && remaining > 0 {
			ttl = remaining
		}
	}
	n++
	value := []byte(strconv.FormatInt(n, 10))
	if !c.store.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl) {
		return 0, errCounterDropped
	}
	c.store.Wait()
	return n, nil
}
