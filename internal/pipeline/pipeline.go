// Package pipeline runs a skin analysis from the client side. Online, it
// uses the two-phase describe and conclude calls so the user can answer the
// symptom questions while the photo is being described. Offline, it puts the
// whole request in the durable queue, where offline.Replayer picks it up once
// the connection returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-triage-backend/internal/capture"
	"github.com/tbourn/go-triage-backend/internal/client"
	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/offline"
)

// API is the part of the triage API the pipeline calls.
type API interface {
	DescribeSkinImage(ctx context.Context, imageData, mimeType string) (string, error)
	GetSkinConclusion(ctx context.Context, analysisID string, answers map[string]string, language string) (domain.TriageResult, error)
}

// Draft is a photo between the two phases.
type Draft struct {
	Image capture.Image
	// AnalysisID is set when the describe phase ran online.
	AnalysisID string
}

// Online reports whether the draft was described by the server.
func (d Draft) Online() bool { return d.AnalysisID != "" }

// Outcome is what a submission produced: a verdict, or a queue entry.
type Outcome struct {
	Queued  bool
	QueueID string
	Result  *domain.TriageResult
}

// Pipeline routes analyses to the API or the offline queue.
type Pipeline struct {
	api   API
	queue *offline.Queue
	conn  *offline.Connectivity
	log   zerolog.Logger
}

// New wires a pipeline.
func New(api API, q *offline.Queue, conn *offline.Connectivity, log zerolog.Logger) *Pipeline {
	return &Pipeline{api: api, queue: q, conn: conn, log: log}
}

// Begin starts an analysis of img. When online it runs the describe phase;
// when offline, or when the describe call cannot reach the server, it returns
// an offline draft. Any other API error is returned as is.
func (p *Pipeline) Begin(ctx context.Context, img capture.Image) (Draft, error) {
	if len(img.Data) == 0 {
		return Draft{}, capture.ErrEmptyImage
	}
	d := Draft{Image: img}
	if !p.conn.Online() {
		return d, nil
	}
	id, err := p.api.DescribeSkinImage(ctx, img.Base64(), img.MIMEType)
	switch {
	case err == nil:
		d.AnalysisID = id
		return d, nil
	case ctx.Err() != nil:
		return Draft{}, ctx.Err()
	case errors.Is(err, client.ErrNetworkUnreachable):
		p.wentOffline(err)
		return d, nil
	default:
		return Draft{}, err
	}
}

// Finish completes d with the user's answers. An online draft is concluded
// on the server; an offline one is queued. A conclude call that cannot reach
// the server queues the full request instead, since the analysis session may
// already be spent.
//
// client.ErrSessionNotFound means the session expired; start again with Begin.
// A canceled ctx abandons the analysis: nothing is queued and connectivity is
// left alone.
func (p *Pipeline) Finish(ctx context.Context, d Draft, answers map[string]string, language string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if d.Online() {
		res, err := p.api.GetSkinConclusion(ctx, d.AnalysisID, answers, language)
		if err == nil {
			return Outcome{Result: &res}, nil
		}
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if !errors.Is(err, client.ErrNetworkUnreachable) {
			return Outcome{}, err
		}
		p.wentOffline(err)
	}
	return p.enqueue(ctx, d.Image, answers, language)
}

// Submit runs Begin and Finish back to back.
func (p *Pipeline) Submit(ctx context.Context, img capture.Image, answers map[string]string, language string) (Outcome, error) {
	d, err := p.Begin(ctx, img)
	if err != nil {
		return Outcome{}, err
	}
	return p.Finish(ctx, d, answers, language)
}

func (p *Pipeline) enqueue(ctx context.Context, img capture.Image, answers map[string]string, language string) (Outcome, error) {
	e, err := p.queue.Enqueue(ctx, domain.AnalysisPayload{
		ImageData:  img.Base64(),
		MIMEType:   img.MIMEType,
		Language:   language,
		MCQAnswers: answers,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("queue analysis: %w", err)
	}
	p.log.Info().Str("queue_id", e.ID).Msg("analysis queued until the connection returns")
	return Outcome{Queued: true, QueueID: e.ID}, nil
}

func (p *Pipeline) wentOffline(err error) {
	p.log.Warn().Err(err).Msg("server unreachable; switching to offline mode")
	p.conn.Set(false)
}
