package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"google.golang.org/genai"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"429 value", genai.APIError{Code: 429, Message: "slow down"}, ErrRateLimited},
		{"429 pointer", &genai.APIError{Code: 429}, ErrRateLimited},
		{"resource exhausted status", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, ErrRateLimited},
		{"wrapped 503", fmt.Errorf("call: %w", genai.APIError{Code: 503}), ErrUnavailable},
		{"401", genai.APIError{Code: 401}, ErrAuth},
		{"403", genai.APIError{Code: 403}, ErrAuth},
		{"net error", &net.OpError{Op: "dial", Err: timeoutErr{}}, ErrUnavailable},
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
		{"quota text", errors.New("Error 429, Quota exceeded"), ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("classify(%v) = %v; want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if classify(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if got := classify(context.Canceled); got != context.Canceled {
		t.Fatalf("cancellation should pass through unchanged, got %v", got)
	}
	got := classify(genai.APIError{Code: 400, Message: "bad image"})
	for _, sentinel := range []error{ErrRateLimited, ErrUnavailable, ErrAuth} {
		if errors.Is(got, sentinel) {
			t.Fatalf("400 should not map to %v", sentinel)
		}
	}
}

func TestToGenaiContents(t *testing.T) {
	in := []Content{
		{Role: RoleUser, Parts: []Part{{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}, TextPart("describe")}},
		{Role: RoleModel, Parts: []Part{TextPart("ok")}},
	}
	out := toGenaiContents(in)
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].Role != string(genai.RoleUser) || out[1].Role != string(genai.RoleModel) {
		t.Fatalf("roles = %q, %q", out[0].Role, out[1].Role)
	}
	if out[0].Parts[0].InlineData == nil || out[0].Parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("first part should be inline image data: %+v", out[0].Parts[0])
	}
	if out[0].Parts[1].Text != "describe" || out[1].Parts[0].Text != "ok" {
		t.Fatalf("text parts not preserved")
	}
}

func TestNewGemini_RejectsEmptyKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), " ", "gemini-2.0-flash"); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestOutcomeOf(t *testing.T) {
	if outcomeOf(nil) != "ok" ||
		outcomeOf(fmt.Errorf("%w", ErrRateLimited)) != "rate_limited" ||
		outcomeOf(ErrUnavailable) != "unavailable" ||
		outcomeOf(ErrAuth) != "auth" ||
		outcomeOf(errors.New("x")) != "error" {
		t.Fatalf("outcomeOf mapping unexpected")
	}
}
