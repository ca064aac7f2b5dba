// Package analysis holds the short-lived server-side sessions that bridge the
// two inference phases. Phase one stores an image description under a random
// id; phase two consumes it exactly once. Entries that are not consumed within
// the TTL disappear on their own.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTTL is how long a description stays claimable after phase one.
const DefaultTTL = 15 * time.Minute

var (
	// ErrNotFound is returned for unknown, expired, and already-consumed ids.
	// Callers cannot tell these apart on purpose: the remedy is always to
	// restart phase one.
	ErrNotFound = errors.New("analysis session not found")

	// ErrEmptyDescription rejects storing a blank description.
	ErrEmptyDescription = errors.New("analysis description is empty")
)

// Store is a keyed, single-use, self-expiring description cache.
type Store interface {
	// Create stores description and returns a fresh unguessable id.
	Create(ctx context.Context, description string) (string, error)
	// Consume atomically returns and removes the description for id.
	// Of two concurrent calls for the same id at most one succeeds.
	Consume(ctx context.Context, id string) (string, error)
	// Claim is Consume that also reports the entry's deadline, so a caller
	// whose follow-up work fails transiently can Restore it.
	Claim(ctx context.Context, id string) (Session, error)
	// Restore puts a claimed entry back until its original deadline. It is
	// a no-op when the deadline has passed or the id is live again.
	Restore(ctx context.Context, s Session) error
	// Evict drops id if present. Evicting a missing id is not an error.
	Evict(ctx context.Context, id string) error
}

// Session is a snapshot of a live cache entry.
type Session struct {
	ID          string
	Description string
	ExpiresAt   time.Time
}

var (
	sessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_sessions_created_total",
			Help: "Analysis sessions stored after a successful describe phase.",
		},
		[]string{"backend"},
	)
	sessionsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_sessions_consumed_total",
			Help: "Analysis sessions claimed by a conclude call.",
		},
		[]string{"backend"},
	)
	sessionsMissed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_sessions_misses_total",
			Help: "Conclude calls whose session id was unknown, expired, or already used.",
		},
		[]string{"backend"},
	)
	sessionsRestored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_sessions_restored_total",
			Help: "Claimed sessions put back after a retryable conclude failure.",
		},
		[]string{"backend"},
	)
	sessionsExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_sessions_expired_total",
			Help: "Analysis sessions dropped by the expiry timer.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(sessionsCreated, sessionsConsumed, sessionsMissed, sessionsRestored, sessionsExpired)
}
