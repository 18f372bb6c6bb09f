package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by a SessionLocker.
type UnlockFunc func(ctx context.Context) error

// SessionLocker coordinates runs sharing an orchestrator session across
// processes. A remote session is a single conversation, so two runs resuming
// it must not interleave their requests.
type SessionLocker interface {
	// Lock blocks until the lock for key is held or ctx ends. The lock expires
	// after ttl if it is never released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
