// Package kv provides the key-value adapter every repository persists
// through. Values are stored as JSON strings. Failures are contained
// here: reads fall back to the caller's default and writes report a
// boolean, so storage trouble never propagates as a fault.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a Redis client with JSON (de)serialization.
type Store struct {
	client *redis.Client
}

// Open connects to Redis and verifies the connection.
func Open(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a store from an existing Redis client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying connection for adapters that need more
// than plain get/set (the gallery image index builds on it).
func (s *Store) Client() *redis.Client {
	return s.client
}

// Get reads key and unmarshals it into dest. It returns false when the
// key is absent, storage is unreachable, or the stored value is not
// valid JSON for dest; in every one of those cases the caller keeps
// whatever default dest already holds. The decode goes through a fresh
// value so a wrong-shaped stored value cannot partially overwrite the
// caller's default before the error is seen.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(raw), fresh.Interface()); err != nil {
		return false
	}
	rv.Elem().Set(fresh.Elem())
	return true
}

// Set marshals value as JSON and writes it under key. Writes are
// best-effort: any failure is reported as false, never as an error.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return false
	}
	return true
}

// Remove deletes key. Missing keys and storage failures are ignored.
func (s *Store) Remove(ctx context.Context, key string) {
	_ = s.client.Del(ctx, key).Err()
}

// Exists reports whether key currently holds a value.
func (s *Store) Exists(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// Ping checks whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}
