package conversation

import (
	"context"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker defines the interface for distributed concurrency control. It lets
// the session manager coordinate access to one session across replicas.
type Locker interface {
	// Lock attempts to acquire a distributed lock for the given key (the
	// session ID). It blocks until the lock is acquired or the context is
	// canceled. The returned UnlockFunc MUST be called to release the lock;
	// the TTL bounds how long a crashed holder keeps the key.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
