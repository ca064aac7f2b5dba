// Package services – TriageService
//
// TriageService runs the two-phase skin analysis. Describe asks the model for
// an objective description of the photo and parks it in the analysis session
// cache; Conclude claims that description once and asks the model for the
// labelled verdict. Analyze runs both phases in one call for the offline
// replay path.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-triage-backend/internal/analysis"
	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/inference"
)

// TriageService coordinates the model and the analysis session cache.
type TriageService struct {
	Model    inference.Model
	Sessions analysis.Store

	// MaxImageBytes caps decoded image size; zero disables the check.
	MaxImageBytes int
}

// NewTriageService constructs a TriageService with a 7 MiB image cap.
func NewTriageService(m inference.Model, sessions analysis.Store) *TriageService {
	return &TriageService{Model: m, Sessions: sessions, MaxImageBytes: 7 << 20}
}

// Describe produces a clinical description of image and returns the id of a
// new analysis session holding it.
func (s *TriageService) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	tr := otel.Tracer("services/TriageService")
	ctx, span := tr.Start(ctx, "Describe",
		trace.WithAttributes(
			attribute.String("image.mime", mimeType),
			attribute.Int("image.bytes", len(image)),
		),
	)
	defer span.End()

	desc, err := s.describe(ctx, image, mimeType)
	if err != nil {
		return "", err
	}
	id, err := s.Sessions.Create(ctx, desc)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("analysis.id", id))
	return id, nil
}

// Conclude claims the session analysisID and returns the verdict. A success
// leaves the session deleted. A retryable model failure puts it back until
// its original deadline so the same id can be concluded again.
func (s *TriageService) Conclude(ctx context.Context, analysisID string, answers map[string]string, lang string) (domain.TriageResult, error) {
	tr := otel.Tracer("services/TriageService")
	ctx, span := tr.Start(ctx, "Conclude",
		trace.WithAttributes(
			attribute.String("analysis.id", analysisID),
			attribute.String("language", lang),
			attribute.Int("answers", len(answers)),
		),
	)
	defer span.End()

	if strings.TrimSpace(analysisID) == "" {
		return domain.TriageResult{}, invalid("analysisId is required")
	}
	sess, err := s.Sessions.Claim(ctx, analysisID)
	if errors.Is(err, analysis.ErrNotFound) {
		return domain.TriageResult{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.TriageResult{}, err
	}
	res, err := s.conclude(ctx, sess.Description, answers, lang)
	if err != nil && retryable(err) {
		if rerr := s.Sessions.Restore(context.WithoutCancel(ctx), sess); rerr != nil {
			log.Warn().Err(rerr).Str("analysis_id", analysisID).Msg("restore analysis session")
		} else {
			span.SetAttributes(attribute.Bool("analysis.restored", true))
		}
	}
	return res, err
}

// Analyze runs describe and conclude back to back without exposing a
// session id.
func (s *TriageService) Analyze(ctx context.Context, image []byte, mimeType string, answers map[string]string, lang string) (domain.TriageResult, error) {
	tr := otel.Tracer("services/TriageService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("image.mime", mimeType),
			attribute.String("language", lang),
		),
	)
	defer span.End()

	desc, err := s.describe(ctx, image, mimeType)
	if err != nil {
		return domain.TriageResult{}, err
	}
	return s.conclude(ctx, desc, answers, lang)
}

func (s *TriageService) describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", invalid("imageData is required")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", invalid("mimeType %q is not an image type", mimeType)
	}
	if s.MaxImageBytes > 0 && len(image) > s.MaxImageBytes {
		return "", invalid("image exceeds %d bytes", s.MaxImageBytes)
	}

	desc, err := s.Model.Generate(ctx, inference.Request{
		Contents: []inference.Content{{
			Role: inference.RoleUser,
			Parts: []inference.Part{
				{Data: image, MIMEType: mimeType},
				inference.TextPart(inference.DescribeInstruction),
			},
		}},
	})
	if err != nil {
		return "", modelErr(err)
	}
	if strings.TrimSpace(desc) == "" {
		return "", ErrEmptyModelResponse
	}
	return desc, nil
}

func (s *TriageService) conclude(ctx context.Context, desc string, answers map[string]string, lang string) (domain.TriageResult, error) {
	prompt := inference.ConcludePrompt(desc, answers, inference.CanonicalLanguage(lang))
	text, err := s.Model.Generate(ctx, inference.Request{
		Contents: []inference.Content{inference.UserText(prompt)},
	})
	if err != nil {
		return domain.TriageResult{}, modelErr(err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.TriageResult{}, ErrEmptyModelResponse
	}
	res, err := inference.ParseTriage(text)
	if err != nil {
		return domain.TriageResult{}, modelErr(err)
	}
	return res, nil
}
