package storage

import (
	"context"
	"errors"
)

// TextStore is the storage medium: a key to text map.
// Implementations must be safe for concurrent use.
type TextStore interface {
	// Get returns the text stored under key. ok is false when nothing is
	// stored; err is reserved for backend failures.
	Get(ctx context.Context, key string) (text string, ok bool, err error)

	// Set replaces the text stored under key.
	Set(ctx context.Context, key, text string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("storage: store is closed")

// ErrUnavailable is reported when there is no storage medium at all.
var ErrUnavailable = errors.New("storage: medium unavailable")
