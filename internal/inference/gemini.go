package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// Gemini is the Model backed by the Google Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// GeminiOption configures a Gemini model.
type GeminiOption func(*Gemini)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeminiOption {
	return func(g *Gemini) { g.temperature = t }
}

// NewGemini creates a client for model using apiKey. Outgoing calls go
// through an otelhttp transport so provider latency shows up in traces.
func NewGemini(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: empty api key", ErrAuth)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &Gemini{client: client, model: model, temperature: 0.2}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate implements Model.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	tr := otel.Tracer("inference/Gemini")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("model", g.model),
			attribute.Int("contents", len(req.Contents)),
			attribute.Bool("json", req.JSON),
		),
	)
	defer span.End()

	temp := g.temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGenaiContents(req.Contents), cfg)
	if err != nil {
		err = classify(err)
		observeCall(g.model, outcomeOf(err), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		observeCall(g.model, "empty", time.Since(start))
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	observeCall(g.model, "ok", time.Since(start))
	return text, nil
}

func toGenaiContents(in []Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(in))
	for _, c := range in {
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			if len(p.Data) > 0 {
				parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
				continue
			}
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		var role genai.Role = genai.RoleUser
		if c.Role == RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}

// classify maps a provider error onto the package's failure kinds, keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	code, status := 0, ""
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case code >= 500:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case code != 0:
		return fmt.Errorf("model call: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	// Some SDK paths only surface the quota signal in the message text.
	msg := err.Error()
	if strings.Contains(msg, "quota") || strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("model call: %w", err)
}
