// Package cache is the fast-path key/value layer used for session
// mirrors, refresh-token registration, and login-attempt counters.
//
// The interface matches what a redis deployment offers (set with TTL,
// get, delete, increment-with-expire) so the in-process implementation
// can be swapped for a networked one without touching the services.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Set stores value under key for ttl. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value and whether the key exists (an expired key
	// does not exist).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment adds one to the counter at key and returns the new
	// value. The first increment of a window starts the ttl; later
	// increments do not extend it, which is what makes the login
	// attempt window a rolling one.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
