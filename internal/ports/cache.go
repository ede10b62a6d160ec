package ports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by caches and repositories for missing keys.
var ErrNotFound = errors.New("not found")

// Cache is a string key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
