// Package inference talks to the remote generative model. It owns the
// provider adapter, the fixed prompts of the two-phase skin analysis, and the
// strict parser for the model's label-prefixed verdict.
package inference

import (
	"context"
	"errors"
)

// Provider failure kinds. Adapters wrap the raw provider error with one of
// these so callers can branch with errors.Is.
var (
	// ErrRateLimited means the provider refused the call for quota reasons.
	ErrRateLimited = errors.New("model rate limited")
	// ErrUnavailable covers transport failures and provider 5xx responses.
	ErrUnavailable = errors.New("model unavailable")
	// ErrAuth means the provider rejected our credentials.
	ErrAuth = errors.New("model authentication failed")
	// ErrEmptyResponse means the call succeeded but returned no text.
	ErrEmptyResponse = errors.New("model returned no text")
	// ErrUnparsable means the text did not follow the required format.
	ErrUnparsable = errors.New("model response could not be parsed")
)

// Roles accepted in Content.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one piece of a message: either text or inline binary data.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Content is one conversation turn.
type Content struct {
	Role  string
	Parts []Part
}

// Request is a single completion call.
type Request struct {
	// System is an optional system instruction.
	System string
	// Contents is the conversation, oldest first. The last entry is the
	// turn the model answers.
	Contents []Content
	// JSON asks the provider to return a JSON document.
	JSON bool
}

// Model is a text/multimodal completion endpoint.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TextPart is a convenience constructor.
func TextPart(s string) Part { return Part{Text: s} }

// UserText builds a single user turn holding text.
func UserText(s string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart(s)}}
}
