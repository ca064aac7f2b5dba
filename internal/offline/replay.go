package offline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-triage-backend/internal/client"
	"github.com/tbourn/go-triage-backend/internal/domain"
)

// Analyzer submits a complete analysis. *client.Client implements it.
type Analyzer interface {
	AnalyzeSkin(ctx context.Context, idemKey string, p domain.AnalysisPayload) (client.AnalyzeResult, error)
}

// ReplayReport summarizes one replay pass.
type ReplayReport struct {
	Attempted int
	Succeeded int
	Failed    int
	// Remaining is the queue length after the pass.
	Remaining int
	// Aborted is set when the pass stopped early because ctx ended.
	Aborted bool
}

// Replayer drains the queue into the result store.
type Replayer struct {
	queue   *Queue
	results *Results
	api     Analyzer
	log     zerolog.Logger

	running   sync.Mutex
	obsMu     sync.Mutex
	observers []func(ReplayReport)
}

// NewReplayer wires a replayer.
func NewReplayer(q *Queue, r *Results, api Analyzer, log zerolog.Logger) *Replayer {
	return &Replayer{queue: q, results: r, api: api, log: log}
}

// OnReport registers fn to receive the report of every completed pass.
func (r *Replayer) OnReport(fn func(ReplayReport)) {
	r.obsMu.Lock()
	r.observers = append(r.observers, fn)
	r.obsMu.Unlock()
}

// Replay submits every pending entry once, oldest first, using the entry ID
// as idempotency key. A successful entry has its verdict stored before it is
// dequeued; a failed one stays queued and the pass moves on.
//
// Only one pass runs at a time. ran is false when another pass was already in
// progress; that pass will pick up anything queued meanwhile on the next
// trigger.
func (r *Replayer) Replay(ctx context.Context) (rep ReplayReport, ran bool, err error) {
	if !r.running.TryLock() {
		return ReplayReport{}, false, nil
	}
	defer r.running.Unlock()

	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return ReplayReport{}, true, err
	}

	for _, e := range pending {
		if ctx.Err() != nil {
			rep.Aborted = true
			break
		}
		rep.Attempted++
		lg := r.log.With().Str("queue_id", e.ID).Logger()

		out, err := r.api.AnalyzeSkin(ctx, e.ID, e.Payload)
		if err != nil {
			if ctx.Err() != nil {
				rep.Attempted--
				rep.Aborted = true
				break
			}
			rep.Failed++
			lg.Warn().Err(err).Msg("replay failed; entry kept")
			continue
		}

		// The verdict is paid for; store it even if the caller gives up now.
		wctx := context.WithoutCancel(ctx)
		if err := r.results.Append(wctx, e.ID, out.Result); err != nil {
			rep.Failed++
			lg.Error().Err(err).Msg("storing replay result failed; entry kept")
			continue
		}
		if err := r.queue.Remove(wctx, e.ID); err != nil {
			lg.Error().Err(err).Msg("dequeue after replay failed")
		}
		rep.Succeeded++
		lg.Info().Bool("replayed", out.Replayed).Str("conclusion", out.Result.Conclusion).Msg("queued analysis completed")
	}

	n, lerr := r.queue.Len(context.WithoutCancel(ctx))
	if lerr != nil {
		err = errors.Join(err, lerr)
	}
	rep.Remaining = n

	r.notify(rep)
	return rep, true, err
}

func (r *Replayer) notify(rep ReplayReport) {
	r.obsMu.Lock()
	obs := append([]func(ReplayReport){}, r.observers...)
	r.obsMu.Unlock()
	for _, fn := range obs {
		fn(rep)
	}
}

// Watch replays once now if conn is online and again on every reconnect,
// until ctx ends. Replays triggered by reconnects run on their own goroutine
// so Connectivity.Set never blocks on the network.
func (r *Replayer) Watch(ctx context.Context, conn *Connectivity) {
	trigger := make(chan struct{}, 1)
	poke := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	cancel := conn.OnReconnect(poke)
	defer cancel()

	if conn.Online() {
		poke()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			if _, _, err := r.Replay(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("replay pass failed")
			}
		}
	}
}
