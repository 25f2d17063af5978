// Package lock defines the distributed lock store that keeps concurrent
// settlement attempts from spending the same outputs. Keys are outpoints in
// "txid:vout" form and every lock is owned by a build attempt.
package lock

import (
	"context"
	"time"
)

type Store interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// TryLock takes key for owner. It returns false when another owner holds
	// the key. Locking a key the owner already holds refreshes its ttl.
	TryLock(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error)

	// Extend refreshes the ttl of keys only if owner holds every one of them,
	// otherwise nothing is changed and ErrTransactionExpired is returned.
	Extend(ctx context.Context, keys []string, owner string, ttl time.Duration) error

	// Transfer hands keys from one owner to another with a fresh ttl. Every key
	// must be held by from, otherwise nothing is changed and
	// ErrTransactionExpired is returned.
	Transfer(ctx context.Context, keys []string, from string, to string, ttl time.Duration) error

	// Free releases the keys held by owner and ignores the rest.
	Free(ctx context.Context, keys []string, owner string) error

	// Exists reports which keys are currently locked by anyone.
	Exists(ctx context.Context, keys []string) (map[string]bool, error)
}
