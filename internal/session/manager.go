// Package session coordinates access to stored conversations. Every web
// request does a read-modify-write on one session, usually around a slow
// provider call, so the manager serializes work per session ID and can
// additionally hold a distributed lock when replicas share a store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/guidepostlabs/guidepost/internal/conversation"
	"github.com/guidepostlabs/guidepost/internal/logging"
)

// lockEntry is one session's mutex plus the count of goroutines waiting
// on or holding it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to the session store by session ID. Entries
// are reference counted so the lock map only ever holds sessions with a
// request in flight.
type Manager struct {
	store conversation.Store

	mu    sync.Mutex // guards locks
	locks map[string]*lockEntry

	locker  conversation.Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker adds a shared lock taken around every session operation.
// Needed when several replicas serve the same session store.
func WithLocker(locker conversation.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a crashed holder keeps a distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over the given store.
func NewManager(store conversation.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire returns the session's lock entry, creating it on first use, and
// bumps its reference count. Callers lock entry.mu themselves and pair
// every acquire with a release after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release drops one reference and evicts the entry at zero, keeping the
// map bounded by in-flight requests rather than by sessions ever seen.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // release without acquire
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load returns the stored session, holding the session lock for the read.
func (m *Manager) Load(ctx context.Context, sessionID string) (*conversation.Session, error) {
	var session *conversation.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, sessionID)
		return err
	})
	return session, err
}

// LoadOrStart tries to load a session. If not found, it starts a fresh one
// and persists it immediately to reserve the ID.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (*conversation.Session, error) {
	var session *conversation.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}

		if !errors.Is(err, conversation.ErrSessionNotFound) {
			return fmt.Errorf("failed to load session: %w", err)
		}

		session = conversation.NewSession()
		if err := m.store.Save(ctx, sessionID, session); err != nil {
			return fmt.Errorf("failed to save new session: %w", err)
		}
		return nil
	})
	return session, err
}

// Save persists the session under its lock.
func (m *Manager) Save(ctx context.Context, sessionID string, session *conversation.Session) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, session)
	})
}

// Delete removes the session under its lock.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// Store returns the underlying session store. Code already running inside
// WithLock uses it directly; the Manager's own mutex is not reentrant.
func (m *Manager) Store() conversation.Store {
	return m.store
}

// WithLock runs fn while holding the session's lock, plus the distributed
// lock when one is configured.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock, it expires via TTL",
					"session_id", sessionID,
					"error", err,
				)
			}
		}()
	}

	return fn(ctx)
}
