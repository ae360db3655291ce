// Package storage is the persisted mirror behind browser sessions: a small
// key-value surface whose multi-key writes and deletes succeed or fail together.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: key not found")

type KV interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// SetAll writes every pair with the same ttl in one atomic step.
	SetAll(ctx context.Context, values map[string]string, ttl time.Duration) error
	// Delete removes every key in one atomic step. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Take returns the value and deletes the key atomically.
	Take(ctx context.Context, key string) (string, error)
	// DeleteIfEqual removes the key only while it still holds expected, and
	// reports whether it did.
	DeleteIfEqual(ctx context.Context, key, expected string) (bool, error)
	Ping(ctx context.Context) error
}

// Locker provides short-lived exclusive markers.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Store interface {
	KV
	Locker
}
