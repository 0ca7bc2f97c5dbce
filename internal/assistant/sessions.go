package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = eris.New("assistant: session not found")

// Defaults bounding the registry.
const (
	DefaultMaxSessions = 1000
	DefaultSessionIdle = time.Hour
)

// Factory builds an assistant for an API key. An empty key means the
// configured default.
type Factory func(apiKey string) (*Assistant, error)

// SessionOption configures a Sessions registry.
type SessionOption func(*Sessions)

// WithMaxSessions caps the number of live sessions. Creating one past the
// cap evicts the least recently used.
func WithMaxSessions(n int) SessionOption {
	return func(s *Sessions) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithIdleTTL expires sessions not used for d.
func WithIdleTTL(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.idle = d
		}
	}
}

type session struct {
	a        *Assistant
	lastUsed time.Time
}

// Sessions holds the assistants created through the API, plus a default one
// used when a request names no session.
type Sessions struct {
	factory Factory
	def     *Assistant
	max     int
	idle    time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates a registry around a default assistant.
func NewSessions(def *Assistant, factory Factory, opts ...SessionOption) *Sessions {
	s := &Sessions{
		factory:  factory,
		def:      def,
		max:      DefaultMaxSessions,
		idle:     DefaultSessionIdle,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create builds a new assistant and returns its session ID.
func (s *Sessions) Create(apiKey string) (string, error) {
	a, err := s.factory(apiKey)
	if err != nil {
		return "", eris.Wrap(err, "assistant: create session")
	}
	id := uuid.NewString()

	s.mu.Lock()
	now := s.now()
	expired := s.expireLocked(now)
	evicted := 0
	for len(s.sessions) >= s.max {
		s.evictOldestLocked()
		evicted++
	}
	s.sessions[id] = &session{a: a, lastUsed: now}
	n := len(s.sessions)
	s.mu.Unlock()

	zap.L().Info("session created",
		zap.String("session_id", id),
		zap.Bool("llm", a.UsesLLM()),
		zap.Int("sessions", n),
		zap.Int("expired", expired),
		zap.Int("evicted", evicted),
	)
	return id, nil
}

// Get returns the assistant for id, or the default one when id is empty.
// A successful lookup refreshes the session's idle timer.
func (s *Sessions) Get(id string) (*Assistant, error) {
	if id == "" {
		return s.def, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if ok && now.Sub(sess.lastUsed) > s.idle {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		return nil, eris.Wrapf(ErrSessionNotFound, "session %s", id)
	}
	sess.lastUsed = now
	return sess.a, nil
}

// Default returns the default assistant.
func (s *Sessions) Default() *Assistant { return s.def }

// Len is the number of live sessions, not counting the default.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
	return len(s.sessions)
}

func (s *Sessions) expireLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.idle {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Sessions) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastUsed.Before(oldest) {
			oldestID, oldest = id, sess.lastUsed
		}
	}
	delete(s.sessions, oldestID)
}
