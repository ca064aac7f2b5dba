package analysis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const backendMemory = "memory"

type memEntry struct {
	description string
	expiresAt   time.Time
	timer       Timer
}

// MemoryStore is the in-process Store. Each entry owns a timer that evicts it
// at expiry; consuming an entry cancels its timer.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	ttl     time.Duration
	clock   Clock
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL overrides DefaultTTL. Non-positive values are ignored.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memEntry),
		ttl:     DefaultTTL,
		clock:   SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyDescription
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	e := &memEntry{description: description, expiresAt: s.clock.Now().Add(s.ttl)}
	s.entries[id] = e
	e.timer = s.clock.AfterFunc(s.ttl, func() { s.expire(id, e) })

	sessionsCreated.WithLabelValues(backendMemory).Inc()
	return id, nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(ctx context.Context, id string) (string, error) {
	sess, err := s.Claim(ctx, id)
	return sess.Description, err
}

// Claim implements Store. An entry whose deadline has passed is a miss even
// if its timer has not fired yet.
func (s *MemoryStore) Claim(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		sessionsMissed.WithLabelValues(backendMemory).Inc()
		return Session{}, ErrNotFound
	}
	delete(s.entries, id)
	if e.timer != nil {
		e.timer.Stop()
	}
	if !s.clock.Now().Before(e.expiresAt) {
		sessionsMissed.WithLabelValues(backendMemory).Inc()
		return Session{}, ErrNotFound
	}
	sessionsConsumed.WithLabelValues(backendMemory).Inc()
	return Session{ID: id, Description: e.description, ExpiresAt: e.expiresAt}, nil
}

// Restore implements Store. The timer is re-armed for the remaining time.
func (s *MemoryStore) Restore(_ context.Context, sess Session) error {
	if sess.ID == "" || strings.TrimSpace(sess.Description) == "" {
		return ErrEmptyDescription
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	left := sess.ExpiresAt.Sub(s.clock.Now())
	if left <= 0 {
		return nil
	}
	if _, live := s.entries[sess.ID]; live {
		return nil
	}
	e := &memEntry{description: sess.Description, expiresAt: sess.ExpiresAt}
	s.entries[sess.ID] = e
	e.timer = s.clock.AfterFunc(left, func() { s.expire(sess.ID, e) })
	sessionsRestored.WithLabelValues(backendMemory).Inc()
	return nil
}

// Evict implements Store.
func (s *MemoryStore) Evict(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		delete(s.entries, id)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	return nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot lists live entries; intended for diagnostics.
func (s *MemoryStore) Snapshot() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Session{ID: id, Description: e.description, ExpiresAt: e.expiresAt})
	}
	return out
}

// expire removes id only if it still maps to the entry the timer was armed for.
func (s *MemoryStore) expire(id string, armed *memEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[id]; ok && cur == armed {
		delete(s.entries, id)
		sessionsExpired.WithLabelValues(backendMemory).Inc()
		log.Debug().Str("analysis_id", id).Msg("analysis session expired")
	}
}
