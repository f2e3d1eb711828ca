package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sweetpotato0/wanderai/errors"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/metrics"
)

// Defaults used when the manager is built without options.
const (
	DefaultTimeout     = 60 * time.Minute
	DefaultMaxSessions = 100
)

// Store defines the interface for session storage backends that operate on
// serializable session records. Load returns an error wrapping
// errors.ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type entry struct {
	session    *ChatSession
	lastAccess time.Time
}

// Manager holds the live sessions in memory. Idle sessions expire after the
// timeout and the least recently used session is evicted once the limit is
// reached. With a Store configured, sessions are snapshotted on Save and
// before eviction, and unknown ids are looked up there before a new session
// is created.
type Manager struct {
	mu           sync.Mutex
	store        Store
	sessions     map[string]*entry
	timeout      time.Duration
	maxSessions  int
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithStore sets the store for the manager.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeout sets the idle time after which a session expires.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithMaxSessions bounds the number of sessions held in memory.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithHistoryLimit sets the per-session history bound.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new session manager with the given options.
//
// Example:
//
//	mgr := session.NewManager(session.WithStore(inmemory.NewInMemoryStore()))
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:     make(map[string]*entry),
		timeout:      DefaultTimeout,
		maxSessions:  DefaultMaxSessions,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// GetOrCreate returns the session for id. An empty or unknown id yields a
// new session with a fresh id.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(ctx)

	if e, ok := m.sessions[id]; ok && id != "" {
		e.lastAccess = m.now()
		return e.session, nil
	}

	if id != "" && m.store != nil {
		record, err := m.store.Load(ctx, id)
		switch {
		case err == nil:
			sess := FromRecord(record, m.historyLimit)
			m.addLocked(ctx, sess)
			m.logger.Info("session rehydrated", "session_id", id)
			return sess, nil
		case !stderrors.Is(err, errors.ErrNotFound):
			m.logger.Warn("session load failed, starting a new one", "session_id", id, "error", err)
		}
	}

	sess := NewChatSession(m.historyLimit)
	m.addLocked(ctx, sess)
	m.logger.Debug("session created", "session_id", sess.ID())
	return sess, nil
}

// Acquire returns the session for id like GetOrCreate, locked for a single
// message. The caller must Unlock it. A session evicted between lookup and
// locking is looked up again, so the returned session is always the one the
// manager holds.
func (m *Manager) Acquire(ctx context.Context, id string) (*ChatSession, error) {
	for {
		sess, err := m.GetOrCreate(ctx, id)
		if err != nil {
			return nil, err
		}
		sess.Lock()
		if m.holds(sess) {
			return sess, nil
		}
		sess.Unlock()
		id = sess.ID()
	}
}

func (m *Manager) holds(sess *ChatSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sess.ID()]
	return ok && e.session == sess
}

// Get returns a live session.
func (m *Manager) Get(_ context.Context, id string) (*ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || m.expiredLocked(e) {
		return nil, fmt.Errorf("session %s: %w", id, errors.ErrNotFound)
	}
	return e.session, nil
}

// Delete removes a session from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, known := m.sessions[id]
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if m.store != nil {
		if exists, err := m.store.Exists(ctx, id); err == nil && exists {
			known = true
			if err := m.store.Delete(ctx, id); err != nil {
				m.logger.Error("delete session failed", "session_id", id, "error", err)
				return err
			}
		}
	}
	if !known {
		return fmt.Errorf("session %s: %w", id, errors.ErrNotFound)
	}
	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// Save snapshots a session to the store. The caller must hold the session
// lock. Without a store it does nothing.
func (m *Manager) Save(ctx context.Context, sess *ChatSession) error {
	if m.store == nil || sess == nil {
		return nil
	}
	if err := m.store.Save(ctx, sess.Snapshot()); err != nil {
		m.logger.Error("save session failed", "session_id", sess.ID(), "error", err)
		return err
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and reports how many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(ctx)
}

// Janitor sweeps expired sessions every interval until ctx is done.
func (m *Manager) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx); n > 0 {
				m.logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}

func (m *Manager) expiredLocked(e *entry) bool {
	return m.now().Sub(e.lastAccess) > m.timeout
}

func (m *Manager) sweepLocked(ctx context.Context) int {
	removed := 0
	for id, e := range m.sessions {
		if m.expiredLocked(e) && m.evictLocked(ctx, id, e) {
			removed++
		}
	}
	return removed
}

// addLocked makes room by evicting the least recently used idle sessions.
// When every session is handling a message the limit is exceeded until
// one of them becomes idle.
func (m *Manager) addLocked(ctx context.Context, sess *ChatSession) {
	if excess := len(m.sessions) - m.maxSessions + 1; excess > 0 {
		ids := make([]string, 0, len(m.sessions))
		for id := range m.sessions {
			ids = append(ids, id)
		}
		slices.SortFunc(ids, func(a, b string) int {
			return m.sessions[a].lastAccess.Compare(m.sessions[b].lastAccess)
		})
		for _, id := range ids {
			if excess == 0 {
				break
			}
			if m.evictLocked(ctx, id, m.sessions[id]) {
				m.logger.Info("evicted least recently used session", "session_id", id)
				excess--
			}
		}
		if excess > 0 {
			m.logger.Warn("all sessions busy, exceeding the session limit",
				"sessions", len(m.sessions)+1, "max_sessions", m.maxSessions)
		}
	}
	m.sessions[sess.ID()] = &entry{session: sess, lastAccess: m.now()}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// evictLocked snapshots the session when a store is configured and forgets
// it. A session that is handling a message is kept and evictLocked reports
// false.
func (m *Manager) evictLocked(ctx context.Context, id string, e *entry) bool {
	if !e.session.mu.TryLock() {
		return false
	}
	defer e.session.mu.Unlock()
	if m.store != nil {
		if err := m.store.Save(ctx, e.session.Snapshot()); err != nil {
			m.logger.Warn("snapshot before eviction failed", "session_id", id, "error", err)
		}
	}
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return true
}
