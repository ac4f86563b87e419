package store

import "context"

// KV is a durable per-device key-value store.
type KV interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys; absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
