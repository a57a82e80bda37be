package conversation

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// Store defines the interface for persisting sessions between requests.
// The web layer loads the session named by the browser cookie, applies one
// action, and saves it back. Implementations must be safe for concurrent
// use; serializing whole load-modify-save cycles is the session manager's
// concern, not the store's.
type Store interface {
	// Save persists the session for a given session ID.
	Save(ctx context.Context, sessionID string, session *Session) error

	// Load retrieves the session for a given session ID.
	// Returns ErrSessionNotFound if the session does not exist or has expired.
	Load(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes the session for a given session ID.
	Delete(ctx context.Context, sessionID string) error
}
