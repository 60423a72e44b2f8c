package storage

import (
	"context"
)

// DurableStore is a string-keyed, string-valued persistent store backing
// the durable cache tier. A missing key is reported with found == false and
// a nil error.
type DurableStore interface {
	// Set writes value under key, overwriting any previous value
	Set(ctx context.Context, key, value string) error

	// Get reads the value stored under key
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources
	Close() error
}

// KeyLister is implemented by stores that can enumerate keys.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// HealthChecker is implemented by stores that can verify their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}
