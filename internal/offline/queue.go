package offline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

// ErrEmptyPayload is returned when enqueuing a request without a photo.
var ErrEmptyPayload = errors.New("offline: payload has no image")

// QueuedRequest is an analysis waiting for a connection. ID doubles as the
// Idempotency-Key of its replay.
type QueuedRequest struct {
	ID        string                 `json:"id"`
	Payload   domain.AnalysisPayload `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Queue is the FIFO of pending requests. Entries leave only through Remove,
// after their result has been stored.
type Queue struct {
	coll  Collection[QueuedRequest]
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewQueue returns a queue over coll.
func NewQueue(coll Collection[QueuedRequest]) *Queue {
	return &Queue{coll: coll, now: time.Now, newID: uuid.NewString}
}

// Enqueue appends p and returns the stored entry.
func (q *Queue) Enqueue(ctx context.Context, p domain.AnalysisPayload) (QueuedRequest, error) {
	if p.ImageData == "" {
		return QueuedRequest{}, ErrEmptyPayload
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.coll.Load(ctx)
	if err != nil {
		return QueuedRequest{}, err
	}
	e := QueuedRequest{ID: q.newID(), Payload: p, Timestamp: q.now().UTC()}
	if err := q.coll.SaveAll(ctx, append(items, e)); err != nil {
		return QueuedRequest{}, err
	}
	return e, nil
}

// Pending returns the entries oldest first.
func (q *Queue) Pending(ctx context.Context) ([]QueuedRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.coll.Load(ctx)
}

// Remove deletes the entry with id. Removing an unknown id is a no-op.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.coll.Load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, e := range items {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return q.coll.SaveAll(ctx, kept)
}

// Len returns the number of pending entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.Pending(ctx)
	return len(items), err
}
