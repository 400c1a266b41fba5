// Package kv provides the key-value persistence contract for tracked
// progress state.
//
// Primary backend: Redis (env REDIS_DSN).
// Fallback: Postgres single-table store (env DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package kv

import (
	"context"
	"errors"
)

// Store is a point read/write key-value contract. No transactions, no
// queries; absence of a key is reported through the found flag, never as
// an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// New creates the best available store: Redis > Postgres > in-memory
// (dev fallback). When isProd is true the in-memory fallback is not
// allowed and the function returns an error instead.
func New(ctx context.Context, redisDSN, databaseURL string, isProd bool) (Store, error) {
	if redisDSN != "" {
		return newRedisStore(redisDSN), nil
	}
	if databaseURL != "" {
		return newPostgresStore(ctx, databaseURL)
	}
	if isProd {
		return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for progress persistence; in-memory store is not allowed")
	}
	return NewMemory(), nil
}
