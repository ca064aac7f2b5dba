// Package client is a typed HTTP client for the triage API. It is what the
// offline pipeline and triagectl use to reach the server; every failure comes
// back as an *Error whose Kind callers can branch on with errors.Is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

const (
	pathDescribe   = "/ai/describe-skin-image"
	pathConclusion = "/ai/get-skin-conclusion"
	pathAnalyze    = "/ai/analyze-skin"
	pathChat       = "/ai/chat"
	pathHealth     = "/health"

	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotency-Replayed"
	headerRequestID      = "X-Request-ID"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as is, without tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every API call.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithAPIBasePath overrides the "/api" prefix of the AI endpoints.
func WithAPIBasePath(p string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(p, "/") }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client calls the triage API.
type Client struct {
	baseURL string
	apiBase string
	token   string
	timeout time.Duration
	http    *http.Client
}

// New returns a Client for the server at baseURL (scheme and host, no path).
// Requests are traced with otelhttp unless WithHTTPClient is given.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiBase: "/api",
		timeout: 2 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// AnalyzeResult is a verdict from analyze-skin, with whether the server
// served it from a stored result.
type AnalyzeResult struct {
	Result   domain.TriageResult
	Replayed bool
}

// DescribeSkinImage runs phase 1 and returns the analysis id.
func (c *Client) DescribeSkinImage(ctx context.Context, imageData, mimeType string) (string, error) {
	var out struct {
		AnalysisID string `json:"analysisId"`
	}
	in := map[string]string{"imageData": imageData, "mimeType": mimeType}
	if _, err := c.do(ctx, "describe", http.MethodPost, c.apiBase+pathDescribe, nil, in, &out); err != nil {
		return "", err
	}
	if out.AnalysisID == "" {
		return "", &Error{Kind: KindServerFault, Op: "describe", Err: errors.New("response has no analysisId")}
	}
	return out.AnalysisID, nil
}

// GetSkinConclusion runs phase 2 for analysisID. A SessionNotFound error
// means phase 1 must be repeated.
func (c *Client) GetSkinConclusion(ctx context.Context, analysisID string, answers map[string]string, language string) (domain.TriageResult, error) {
	var out domain.TriageResult
	in := struct {
		AnalysisID string            `json:"analysisId"`
		MCQAnswers map[string]string `json:"mcqAnswers"`
		Language   string            `json:"language"`
	}{analysisID, answers, language}
	if _, err := c.do(ctx, "conclude", http.MethodPost, c.apiBase+pathConclusion, nil, in, &out); err != nil {
		return domain.TriageResult{}, err
	}
	return out, nil
}

// AnalyzeSkin runs both phases in one call. A non-empty idemKey makes the
// call safe to repeat: the server answers a repeat with the stored verdict.
func (c *Client) AnalyzeSkin(ctx context.Context, idemKey string, p domain.AnalysisPayload) (AnalyzeResult, error) {
	var hdr http.Header
	if idemKey != "" {
		hdr = http.Header{headerIdempotencyKey: []string{idemKey}}
	}
	var out domain.TriageResult
	resp, err := c.do(ctx, "analyze", http.MethodPost, c.apiBase+pathAnalyze, hdr, p, &out)
	if err != nil {
		return AnalyzeResult{}, err
	}
	return AnalyzeResult{
		Result:   out,
		Replayed: strings.EqualFold(resp.Header.Get(headerReplayed), "true"),
	}, nil
}

// Chat sends one triage chat message.
func (c *Client) Chat(ctx context.Context, message, language string) (domain.ChatReply, error) {
	var out domain.ChatReply
	in := map[string]string{"message": message, "language": language}
	if _, err := c.do(ctx, "chat", http.MethodPost, c.apiBase+pathChat, nil, in, &out); err != nil {
		return domain.ChatReply{}, err
	}
	return out, nil
}

// ResetChat discards the caller's conversation.
func (c *Client) ResetChat(ctx context.Context) error {
	_, err := c.do(ctx, "reset chat", http.MethodDelete, c.apiBase+pathChat, nil, nil, nil)
	return err
}

// Health checks that the server answers. It is the connectivity probe used
// by the offline package.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, pathHealth, nil, nil, nil)
	return err
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, hdr http.Header, in, out any) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, &Error{Kind: KindCanceled, Op: op, Err: cerr}
		}
		return nil, &Error{Kind: KindNetworkUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, decodeError(op, resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, &Error{Kind: KindServerFault, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp, nil
}

func decodeError(op string, resp *http.Response) *Error {
	var env struct {
		RequestID string `json:"request_id"`
		Code      string `json:"code"`
		Message   string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &env)

	if env.RequestID == "" {
		env.RequestID = resp.Header.Get(headerRequestID)
	}
	if env.Message == "" {
		env.Message = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Kind:      classify(resp.StatusCode, env.Code),
		Op:        op,
		Status:    resp.StatusCode,
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.RequestID,
	}
}
