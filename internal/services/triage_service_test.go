package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/tbourn/go-triage-backend/internal/analysis"
	"github.com/tbourn/go-triage-backend/internal/inference"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

const exampleVerdict = "CONCLUSION: MILD\nEXPLANATION: Superficial redness without swelling.\nSELF_CARE_TIPS: * Rest\n* Hydrate\nDOCTOR_SUGGESTION: NONE"

func TestTriage_DescribeThenConclude_EndToEnd(t *testing.T) {
	ctx := context.Background()
	model := (&scriptedModel{}).push("redness, no swelling", nil).push(exampleVerdict, nil)
	store := analysis.NewMemoryStore()
	svc := NewTriageService(model, store)

	id, err := svc.Describe(ctx, jpeg, "image/jpeg")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("describe should leave exactly one session, got %d", store.Len())
	}

	res, err := svc.Conclude(ctx, id, map[string]string{}, "en")
	if err != nil {
		t.Fatalf("Conclude: %v", err)
	}
	if res.Conclusion != "MILD" || !reflect.DeepEqual(res.SelfCareTips, []string{"Rest", "Hydrate"}) || res.DoctorSuggestion != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.Len() != 0 {
		t.Fatalf("session should be consumed")
	}

	// describe request carries image + instruction
	first := model.reqs[0].Contents[0].Parts
	if len(first) != 2 || first[0].MIMEType != "image/jpeg" || first[1].Text != inference.DescribeInstruction {
		t.Fatalf("unexpected describe request: %+v", first)
	}
	// conclude prompt carries description + placeholder
	prompt := model.reqs[1].Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "redness, no swelling") || !strings.Contains(prompt, inference.NoAnswersPlaceholder) {
		t.Fatalf("conclude prompt missing parts:\n%s", prompt)
	}
}

func TestTriage_ConcludeTwice_SecondIsSessionNotFound(t *testing.T) {
	ctx := context.Background()
	model := (&scriptedModel{}).push("desc", nil).push(exampleVerdict, nil)
	svc := NewTriageService(model, analysis.NewMemoryStore())

	id, _ := svc.Describe(ctx, jpeg, "image/jpeg")
	if _, err := svc.Conclude(ctx, id, nil, "en"); err != nil {
		t.Fatalf("first Conclude: %v", err)
	}
	if _, err := svc.Conclude(ctx, id, nil, "en"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if model.calls() != 2 {
		t.Fatalf("a miss must not call the model; calls=%d", model.calls())
	}
}

func TestTriage_ConcludeRetryAfterRateLimitSucceeds(t *testing.T) {
	ctx := context.Background()
	model := (&scriptedModel{}).
		push("desc", nil).
		push("", fmt.Errorf("%w: 429", inference.ErrRateLimited)).
		push(exampleVerdict, nil)
	store := analysis.NewMemoryStore()
	svc := NewTriageService(model, store)

	id, err := svc.Describe(ctx, jpeg, "image/jpeg")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if _, err := svc.Conclude(ctx, id, nil, "en"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("session should be back after a rate limit; len=%d", store.Len())
	}
	res, err := svc.Conclude(ctx, id, nil, "en")
	if err != nil {
		t.Fatalf("retry Conclude: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("invalid result %+v", res)
	}
	if _, err := svc.Conclude(ctx, id, nil, "en"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session must be gone after success, got %v", err)
	}
}

func TestTriage_ConcludeRestoresOnRetryableFailures(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"unavailable", "", fmt.Errorf("%w: 503", inference.ErrUnavailable), ErrUpstreamUnavailable},
		{"empty", "  ", nil, ErrEmptyModelResponse},
		{"unparsable", "EXPLANATION: no conclusion line", nil, ErrUnparsableResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			model := (&scriptedModel{}).push("desc", nil).push(tc.reply, tc.err)
			store := analysis.NewMemoryStore()
			svc := NewTriageService(model, store)

			id, _ := svc.Describe(ctx, jpeg, "image/jpeg")
			if _, err := svc.Conclude(ctx, id, nil, "en"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got, err := store.Consume(ctx, id); err != nil || got != "desc" {
				t.Fatalf("session not restored: %q %v", got, err)
			}
		})
	}
}

func TestTriage_ConcludeAuthFailureDropsSession(t *testing.T) {
	ctx := context.Background()
	model := (&scriptedModel{}).push("desc", nil).push("", inference.ErrAuth)
	store := analysis.NewMemoryStore()
	svc := NewTriageService(model, store)

	id, _ := svc.Describe(ctx, jpeg, "image/jpeg")
	if _, err := svc.Conclude(ctx, id, nil, "en"); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 0 {
		t.Fatalf("non-retryable failure must not restore; len=%d", store.Len())
	}
}

func TestTriage_ErrorMapping(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"rate limited", "", fmt.Errorf("%w: 429", inference.ErrRateLimited), ErrRateLimited},
		{"empty text", "   ", nil, ErrEmptyModelResponse},
		{"empty sentinel", "", inference.ErrEmptyResponse, ErrEmptyModelResponse},
		{"unparsable", "EXPLANATION: no conclusion line", nil, ErrUnparsableResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := (&scriptedModel{}).push("desc", nil).push(tc.reply, tc.err)
			svc := NewTriageService(model, analysis.NewMemoryStore())
			_, err := svc.Analyze(context.Background(), jpeg, "image/jpeg", nil, "en")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTriage_DescribeEmptyModelResponse_NoSession(t *testing.T) {
	store := analysis.NewMemoryStore()
	svc := NewTriageService((&scriptedModel{}).push("", nil), store)
	if _, err := svc.Describe(context.Background(), jpeg, "image/jpeg"); !errors.Is(err, ErrEmptyModelResponse) {
		t.Fatalf("expected ErrEmptyModelResponse, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("no session should be created on failure")
	}
}

func TestTriage_Validation(t *testing.T) {
	model := &scriptedModel{}
	svc := NewTriageService(model, analysis.NewMemoryStore())
	svc.MaxImageBytes = 4
	ctx := context.Background()

	if _, err := svc.Describe(ctx, nil, "image/png"); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty image: %v", err)
	}
	if _, err := svc.Describe(ctx, []byte{1}, "text/plain"); !errors.Is(err, ErrValidation) {
		t.Fatalf("non-image mime: %v", err)
	}
	if _, err := svc.Describe(ctx, jpeg, "image/jpeg"); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized image: %v", err)
	}
	if _, err := svc.Conclude(ctx, "  ", nil, "en"); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank id: %v", err)
	}
	if model.calls() != 0 {
		t.Fatalf("validation failures must not reach the model")
	}
}

func TestTriage_Analyze_RendersAnswersAndLanguage(t *testing.T) {
	model := (&scriptedModel{}).push("desc", nil).push(exampleVerdict, nil)
	svc := NewTriageService(model, analysis.NewMemoryStore())

	res, err := svc.Analyze(context.Background(), jpeg, "image/jpeg", map[string]string{"Itchy?": "Yes"}, "es")
	if err != nil || res.Conclusion != "MILD" {
		t.Fatalf("Analyze = %+v, %v", res, err)
	}
	prompt := model.reqs[1].Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "- Itchy?: Yes") || !strings.Contains(prompt, "Spanish") {
		t.Fatalf("prompt missing answers or language:\n%s", prompt)
	}
}
