// Package services defines the business logic of the triage backend: the
// two-phase skin analysis and the conversational triage. This file
// centralizes service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-triage-backend/internal/inference"
)

var (
	// ErrValidation marks malformed caller input. The wrapping error says
	// which field.
	ErrValidation = errors.New("validation failed")

	// ErrSessionNotFound is returned when an analysis id is unknown, expired,
	// or already used. The caller has to restart the describe phase.
	ErrSessionNotFound = errors.New("analysis session not found")

	// ErrEmptyModelResponse is returned when the model answered with no text.
	ErrEmptyModelResponse = errors.New("model returned an empty response")

	// ErrUnparsableResponse is returned when the model's answer does not
	// follow the required format.
	ErrUnparsableResponse = errors.New("model response could not be parsed")

	// ErrRateLimited is returned when the model provider throttled us.
	ErrRateLimited = errors.New("model provider rate limit reached")

	// ErrUpstreamUnavailable is returned when the model provider could not
	// be reached or failed on its side.
	ErrUpstreamUnavailable = errors.New("model provider unavailable")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// modelErr maps inference failures onto service errors, keeping the original
// in the chain for logging.
func modelErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inference.ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.Is(err, inference.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	case errors.Is(err, inference.ErrEmptyResponse):
		return fmt.Errorf("%w: %w", ErrEmptyModelResponse, err)
	case errors.Is(err, inference.ErrUnparsable):
		return fmt.Errorf("%w: %w", ErrUnparsableResponse, err)
	default:
		return err
	}
}

// retryable reports model failures after which the same analysis session may
// be concluded again.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrEmptyModelResponse) ||
		errors.Is(err, ErrUnparsableResponse)
}
