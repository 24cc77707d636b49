package redis

// Package redis provides a Redis-backed durable storage backend, for
// deployments where the session record must be shared across hosts.

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadforge/sessionkit/internal/ports"
	"github.com/redis/go-redis/v9"
)

// Backend is a Redis-backed key/value store. Records are stored without a
// TTL: the refresh token outlives access-token expiry, so a record stays
// until the lifecycle manager clears it.
type Backend struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.Backend = (*Backend)(nil)

// NewBackend creates a Redis backend with the default key prefix.
func NewBackend(client redis.UniversalClient) *Backend {
	return &Backend{client: client, prefix: "sessionkit:"}
}

// NewBackendWithPrefix creates a Redis backend with a custom key prefix.
func NewBackendWithPrefix(client redis.UniversalClient, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
