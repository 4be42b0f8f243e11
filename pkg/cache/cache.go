package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error
}

// GetTyped reads key into a fresh T.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, error) {
	var out T
	if err := c.Get(ctx, key, &out); err != nil {
		return out, err
	}
	return out, nil
}

// encode turns a value into its stored form. Strings and byte slices are
// stored as-is, everything else as JSON.
func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache encode: %w", err)
		}
		return data, nil
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("cache decode: %w", err)
		}
		return nil
	}
}

// Nop never stores anything; every Get misses.
type Nop struct{}

func (Nop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Nop) Get(context.Context, string, interface{}) error                { return ErrCacheMiss }
func (Nop) Delete(context.Context, ...string) error                       { return nil }
func (Nop) DeleteByPattern(context.Context, string) error                 { return nil }
func (Nop) Exists(context.Context, ...string) (bool, error)               { return false, nil }
func (Nop) Close() error                                                  { return nil }
