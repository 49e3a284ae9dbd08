package cache

import (
	"context"
	"encoding/json"
	"time"
)

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONSerializer struct{}

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var DefaultSerializer Serializer = JSONSerializer{}

// GetJSON reads key and decodes it into T. A missing key returns ErrMiss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var out T
	data, err := c.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := DefaultSerializer.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := DefaultSerializer.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Take reads and deletes key in one call. Used for single-use tokens.
func Take[T any](ctx context.Context, c Cache, key string) (T, error) {
	v, err := GetJSON[T](ctx, c, key)
	if err != nil {
		return v, err
	}
	return v, c.Delete(ctx, key)
}
