// Package memory provides the default in-process session store. Sessions
// live only as long as the process, which matches the ephemeral-session
// contract of the app.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/guidepostlabs/guidepost/internal/conversation"
)

// Store implements conversation.Store in memory.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]entry
	ttl  time.Duration
	done chan struct{}
}

type entry struct {
	session   *conversation.Session
	expiresAt time.Time // zero means the entry never expires
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the idle lifetime of a session. Zero keeps sessions until
// the process exits.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a new in-memory store. When a TTL is set, a background
// sweeper evicts expired sessions; Close stops it.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		done: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.ttl > 0 {
		go s.sweep(s.ttl)
	}

	return s
}

// Save persists the session in memory.
func (s *Store) Save(ctx context.Context, sessionID string, session *conversation.Session) error {
	var expires time.Time
	if s.ttl > 0 {
		expires = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = entry{session: clone(session), expiresAt: expires}
	return nil
}

// Load retrieves the session from memory. Expired entries are evicted
// lazily here, so correctness does not depend on the sweeper.
func (s *Store) Load(ctx context.Context, sessionID string) (*conversation.Session, error) {
	s.mu.RLock()
	e, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, conversation.ErrSessionNotFound
	}
	if expired(e) {
		s.mu.Lock()
		// Re-check under the write lock: a fresh Save may have replaced
		// the entry in the meantime.
		if cur, ok := s.data[sessionID]; ok && expired(cur) {
			delete(s.data, sessionID)
		}
		s.mu.Unlock()
		return nil, conversation.ErrSessionNotFound
	}

	return clone(e.session), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// Close stops the background sweeper.
func (s *Store) Close() error {
	close(s.done)
	return nil
}

func expired(e entry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (s *Store) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, e := range s.data {
				if expired(e) {
					delete(s.data, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// clone keeps callers and the store isolated, mirroring the copy a
// serializing store would make.
func clone(src *conversation.Session) *conversation.Session {
	copied := *src
	if src.Results != nil {
		res := *src.Results
		res.Interests = append(json.RawMessage(nil), src.Results.Interests...)
		res.Mapping = append(json.RawMessage(nil), src.Results.Mapping...)
		res.Explanations = append(json.RawMessage(nil), src.Results.Explanations...)
		copied.Results = &res
	}
	return &copied
}
