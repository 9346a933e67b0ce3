package db

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Get when nothing is stored under the key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrStorage wraps every failure of the underlying backend.
	ErrStorage = errors.New("storage error")
)

// KeyValueStore is the persistence contract of the garage. Every Set replaces the
// whole value under a key, so readers never observe a partial write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close(ctx context.Context) error
}
