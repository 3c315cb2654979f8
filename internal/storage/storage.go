package storage

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound = errors.New("no such key")
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage is the flat key-value space holding persisted session state.
// SetMany and Delete must apply all keys or none.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Watcher is implemented by backends shared between processes. Watch blocks
// until ctx is done and calls fn with the keys changed by other writers.
type Watcher interface {
	Watch(ctx context.Context, fn func(keys []string)) error
}
