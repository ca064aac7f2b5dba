package offline

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

// StoredResult is a verdict obtained by replaying a queued request.
type StoredResult struct {
	QueueID     string              `json:"queueId"`
	Result      domain.TriageResult `json:"result"`
	CompletedAt time.Time           `json:"completedAt"`
}

// Results holds finished verdicts until the user has seen them, oldest first.
type Results struct {
	coll Collection[StoredResult]
	mu   sync.Mutex
	now  func() time.Time
}

// NewResults returns a result store over coll.
func NewResults(coll Collection[StoredResult]) *Results {
	return &Results{coll: coll, now: time.Now}
}

// Append stores the verdict for queueID. A second verdict for the same entry
// is dropped, so a replay interrupted between storing and dequeuing does not
// show the user the same result twice.
func (r *Results) Append(ctx context.Context, queueID string, res domain.TriageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.coll.Load(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.QueueID == queueID {
			return nil
		}
	}
	return r.coll.SaveAll(ctx, append(items, StoredResult{
		QueueID:     queueID,
		Result:      res,
		CompletedAt: r.now().UTC(),
	}))
}

// Next removes and returns the oldest verdict. ok is false when there is none.
func (r *Results) Next(ctx context.Context) (res StoredResult, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.coll.Load(ctx)
	if err != nil || len(items) == 0 {
		return StoredResult{}, false, err
	}
	if err := r.coll.SaveAll(ctx, items[1:]); err != nil {
		return StoredResult{}, false, err
	}
	return items[0], true, nil
}

// Len returns the number of unseen verdicts.
func (r *Results) Len(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, err := r.coll.Load(ctx)
	return len(items), err
}
