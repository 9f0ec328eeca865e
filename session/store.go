package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/recall/core"
)

const (
	// DefaultCapacity is the number of recent messages kept per session.
	DefaultCapacity = 15
	// DefaultTTL is the inactivity duration after which a session is evicted.
	DefaultTTL = 48 * time.Hour
	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = 10 * time.Minute
)

// Store keeps the bounded recent-message history for every active user.
// Operations on different users run fully in parallel; operations on the
// same user are serialized through a per-user lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	capacity      int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// entry pairs one user's session with its serialization lock. evicted is set
// by the sweeper under mu so a writer holding a stale pointer can tell the
// entry no longer lives in the store.
type entry struct {
	mu      sync.Mutex
	evicted bool
	session *core.ConversationSession
}

// Option configures a Store.
type Option func(*Store) error

// WithCapacity sets the maximum number of messages retained per session.
func WithCapacity(n int) Option {
	return func(s *Store) error {
		if n < 1 {
			n = 1
		}
		s.capacity = n
		return nil
	}
}

// WithTTL sets the inactivity duration after which sessions are evicted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) error {
		s.ttl = ttl
		return nil
	}
}

// WithSweepInterval sets the background sweeper period.
// A non-positive interval disables the background sweeper.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) error {
		s.sweepInterval = interval
		return nil
	}
}

// WithClock injects a clock. Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a session store and starts its background sweeper.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		entries:       make(map[string]*entry),
		capacity:      DefaultCapacity,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        slog.Default().With("component", "session-store"),
		stop:          make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.sweepInterval > 0 {
		go s.sweepLoop()
	}

	return s, nil
}

// GetOrCreate returns a snapshot of the user's active session, creating an
// empty one if none exists.
func (s *Store) GetOrCreate(userID string) core.ConversationSession {
	e := s.lockEntry(userID)
	defer e.mu.Unlock()
	return snapshot(e.session)
}

// Append adds a message to the user's session, trims the history to capacity
// (oldest dropped) and bumps the activity timestamp.
func (s *Store) Append(userID string, msg core.ChatMessage) {
	e := s.lockEntry(userID)
	defer e.mu.Unlock()

	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	e.session.Messages = append(e.session.Messages, msg)
	if overflow := len(e.session.Messages) - s.capacity; overflow > 0 {
		e.session.Messages = e.session.Messages[overflow:]
	}
	e.session.LastActivity = now
}

// Reset atomically replaces the user's session with a fresh empty one and
// returns the new session id. The returned id always differs from the
// previous one.
func (s *Store) Reset(userID string) string {
	e := s.lockEntry(userID)
	defer e.mu.Unlock()

	previous := e.session.Id
	id := uuid.New().String()
	for id == previous {
		id = uuid.New().String()
	}

	now := s.now()
	e.session = &core.ConversationSession{
		Id:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
	return id
}

// Recent returns up to limit of the user's most recent messages, ordered
// oldest to newest. Returns nil when the user has no session.
func (s *Store) Recent(userID string, limit int) []core.ChatMessage {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok || limit <= 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil
	}

	msgs := e.session.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]core.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Info returns a summary of the user's active session, or nil if none exists.
func (s *Store) Info(userID string) *core.SessionInfo {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil
	}
	return &core.SessionInfo{
		SessionID:    e.session.Id,
		MessageCount: len(e.session.Messages),
		LastActivity: e.session.LastActivity,
	}
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were evicted. Busy sessions are skipped via a non-blocking lock attempt so
// the sweeper can never deadlock against request-path locks; a busy session
// is by definition active and not a candidate anyway.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for userID, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if idle := now.Sub(e.session.LastActivity); idle > s.ttl {
			e.evicted = true
			delete(s.entries, userID)
			evicted++
		}
		e.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Info("swept expired sessions", "evicted", evicted, "remaining", len(s.entries))
	}
	return evicted
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweeper. Sessions remain readable afterwards.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// lockEntry returns the user's entry with its lock held. When the sweeper
// evicted the entry between lookup and lock, the lookup is retried so a
// racing write never lands on a deleted entry.
func (s *Store) lockEntry(userID string) *entry {
	for {
		e := s.entry(userID)
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// entry returns the user's entry, creating a fresh session on first use.
func (s *Store) entry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e
	}

	now := s.now()
	e = &entry{
		session: &core.ConversationSession{
			Id:           uuid.New().String(),
			UserID:       userID,
			CreatedAt:    now,
			LastActivity: now,
		},
	}
	s.entries[userID] = e
	return e
}

// sweepLoop runs Sweep on a fixed timer, independent of request handling.
func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// snapshot copies a session so callers cannot mutate shared state.
func snapshot(sess *core.ConversationSession) core.ConversationSession {
	out := *sess
	out.Messages = make([]core.ChatMessage, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}
