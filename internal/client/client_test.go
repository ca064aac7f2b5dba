package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope(code, msg string) map[string]string {
	return map[string]string{"request_id": "rid-1", "code": code, "message": msg}
}

func TestDescribeThenConclude(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/ai/describe-skin-image":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["imageData"] != "AAAA" || in["mimeType"] != "image/png" {
				t.Errorf("unexpected describe body: %v", in)
			}
			writeJSON(w, http.StatusOK, map[string]string{"analysisId": "a-1"})
		case "/api/ai/get-skin-conclusion":
			var in struct {
				AnalysisID string            `json:"analysisId"`
				MCQAnswers map[string]string `json:"mcqAnswers"`
				Language   string            `json:"language"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.AnalysisID != "a-1" || in.Language != "en" || in.MCQAnswers["q1"] != "yes" {
				t.Errorf("unexpected conclude body: %+v", in)
			}
			writeJSON(w, http.StatusOK, domain.TriageResult{Conclusion: "MILD", Explanation: "Looks like a mild rash."})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	ctx := context.Background()

	id, err := c.DescribeSkinImage(ctx, "AAAA", "image/png")
	if err != nil || id != "a-1" {
		t.Fatalf("describe = (%q, %v)", id, err)
	}
	res, err := c.GetSkinConclusion(ctx, id, map[string]string{"q1": "yes"}, "en")
	if err != nil {
		t.Fatalf("conclude: %v", err)
	}
	if res.Conclusion != domain.ConclusionMild || res.Explanation == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if sawAuth != "Bearer tok" {
		t.Fatalf("Authorization = %q", sawAuth)
	}
}

func TestAnalyzeSkin_SendsKeyAndReportsReplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != "q-42" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		w.Header().Set("Idempotency-Replayed", "true")
		writeJSON(w, http.StatusOK, domain.TriageResult{Conclusion: "SERIOUS", Explanation: "See a doctor."})
	}))
	defer srv.Close()

	out, err := New(srv.URL).AnalyzeSkin(context.Background(), "q-42", domain.AnalysisPayload{ImageData: "AAAA", MIMEType: "image/png", Language: "en"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !out.Replayed || out.Result.Conclusion != domain.ConclusionSerious {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestAnalyzeSkin_NoKeyNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Idempotency-Key"]; ok {
			t.Errorf("unexpected Idempotency-Key header")
		}
		writeJSON(w, http.StatusOK, domain.TriageResult{Conclusion: "MILD", Explanation: "ok"})
	}))
	defer srv.Close()

	out, err := New(srv.URL).AnalyzeSkin(context.Background(), "", domain.AnalysisPayload{})
	if err != nil || out.Replayed {
		t.Fatalf("got (%+v, %v)", out, err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"session miss", http.StatusNotFound, "session_not_found", ErrSessionNotFound},
		{"unparsable", http.StatusBadGateway, "unparsable_response", ErrUnparsableResponse},
		{"empty", http.StatusBadGateway, "empty_model_response", ErrEmptyModelResponse},
		{"rate limited", http.StatusTooManyRequests, "rate_limited", ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, "unauthorized", ErrUnauthorized},
		{"validation", http.StatusBadRequest, "validation_error", ErrValidation},
		{"too large", http.StatusRequestEntityTooLarge, "payload_too_large", ErrValidation},
		{"upstream", http.StatusServiceUnavailable, "upstream_unavailable", ErrServerFault},
		{"internal", http.StatusInternalServerError, "internal_error", ErrServerFault},
		{"bare 429", http.StatusTooManyRequests, "", ErrRateLimited},
		{"bare 403", http.StatusForbidden, "", ErrUnauthorized},
		{"bare 502", http.StatusBadGateway, "", ErrServerFault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.code == "" {
					w.WriteHeader(tc.status)
					return
				}
				writeJSON(w, tc.status, envelope(tc.code, "nope"))
			}))
			defer srv.Close()

			_, err := New(srv.URL).Chat(context.Background(), "hi", "en")
			if !errors.Is(err, tc.want) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tc.want)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Fatalf("expected *Error with status %d, got %#v", tc.status, err)
			}
		})
	}
}

func TestError_CarriesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope("session_not_found", "analysis session expired"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetSkinConclusion(context.Background(), "gone", nil, "en")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != "session_not_found" || apiErr.RequestID != "rid-1" || apiErr.Op != "conclude" {
		t.Fatalf("unexpected envelope: %+v", apiErr)
	}
	if apiErr.Retryable() {
		t.Fatalf("session miss must not be retryable")
	}
	if errors.Is(err, ErrServerFault) {
		t.Fatalf("session miss must not match ErrServerFault")
	}
}

func TestNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).Health(context.Background())
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("expected ErrNetworkUnreachable, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.Retryable() || apiErr.Err == nil {
		t.Fatalf("expected retryable transport error with cause, got %#v", err)
	}
}

func TestResetChat_NoContent(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL, WithAPIBasePath("/v2/")).ResetChat(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if method != http.MethodDelete || path != "/v2/ai/chat" {
		t.Fatalf("got %s %s", method, path)
	}
}

func TestDescribe_MissingIDIsServerFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	defer srv.Close()

	_, err := New(srv.URL).DescribeSkinImage(context.Background(), "AAAA", "image/png")
	if !errors.Is(err, ErrServerFault) {
		t.Fatalf("expected ErrServerFault, got %v", err)
	}
}

func TestChat_DecodesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.ChatReply{Text: "How long?", Suggestions: []string{"1 day", "1 week"}})
	}))
	defer srv.Close()

	reply, err := New(srv.URL).Chat(context.Background(), "I have a rash", "en")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.Text != "How long?" || len(reply.Suggestions) != 2 || reply.TriageResult != nil {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestCanceledContextIsNotNetworkUnreachable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	pre, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL).DescribeSkinImage(pre, "aGk=", "image/png")
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrCanceled wrapping context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("cancellation must not look like a network failure")
	}

	mid, cancelMid := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelMid()
	_, err = New(srv.URL).DescribeSkinImage(mid, "aGk=", "image/png")
	if !errors.Is(err, ErrCanceled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrCanceled wrapping DeadlineExceeded, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Retryable() {
		t.Fatalf("canceled calls are not retryable: %#v", err)
	}
}
