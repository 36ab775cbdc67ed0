package kv

import (
	"context"
	"time"
)

// Store is the shared key-value capability the token repository runs on.
// Implementations must provide atomic single-key operations with per-key
// TTLs; no multi-key transactions are assumed anywhere above this interface.
// The production driver is Redis so the state is visible to every process
// instance.
type Store interface {
	// Set writes value under key. A positive ttl makes the key self-expire.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
