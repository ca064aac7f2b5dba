package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call by what the caller can do about it.
type Kind string

const (
	KindNetworkUnreachable Kind = "network_unreachable"
	KindUnauthorized       Kind = "unauthorized"
	KindRateLimited        Kind = "rate_limited"
	KindSessionNotFound    Kind = "session_not_found"
	KindUnparsableResponse Kind = "unparsable_response"
	KindEmptyModelResponse Kind = "empty_model_response"
	KindValidation         Kind = "validation_error"
	KindServerFault        Kind = "server_fault"
	// KindCanceled means the caller's context ended before a response
	// arrived. Err is the context's error.
	KindCanceled Kind = "canceled"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrSessionNotFound    = errors.New("analysis session not found")
	ErrUnparsableResponse = errors.New("unparsable model response")
	ErrEmptyModelResponse = errors.New("empty model response")
	ErrValidation         = errors.New("validation error")
	ErrServerFault        = errors.New("server fault")
	ErrCanceled           = errors.New("request canceled")
)

var sentinelOf = map[Kind]error{
	KindNetworkUnreachable: ErrNetworkUnreachable,
	KindUnauthorized:       ErrUnauthorized,
	KindRateLimited:        ErrRateLimited,
	KindSessionNotFound:    ErrSessionNotFound,
	KindUnparsableResponse: ErrUnparsableResponse,
	KindEmptyModelResponse: ErrEmptyModelResponse,
	KindValidation:         ErrValidation,
	KindServerFault:        ErrServerFault,
	KindCanceled:           ErrCanceled,
}

// Error is returned by every Client method that fails.
//
// Status, Code, Message and RequestID come from the API's error envelope and
// are empty for transport failures, where Err holds the cause.
type Error struct {
	Kind      Kind
	Op        string
	Status    int
	Code      string
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Code == "" && e.Err != nil:
		return fmt.Sprintf("triage api: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.RequestID != "":
		return fmt.Sprintf("triage api: %s: %d %s: %s (request %s)", e.Op, e.Status, e.Code, e.Message, e.RequestID)
	default:
		return fmt.Sprintf("triage api: %s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
}

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	return sentinelOf[e.Kind] == target
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later without
// changes. Queue replay keeps entries regardless; this only guides callers
// deciding between "try again" and "start over".
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetworkUnreachable, KindRateLimited, KindServerFault:
		return true
	}
	return false
}

// classify maps a non-2xx response to a Kind. Domain codes win over the
// status so a 404 session miss is not confused with a missing route.
func classify(status int, code string) Kind {
	switch code {
	case "session_not_found":
		return KindSessionNotFound
	case "unparsable_response":
		return KindUnparsableResponse
	case "empty_model_response":
		return KindEmptyModelResponse
	case "rate_limited":
		return KindRateLimited
	case "unauthorized":
		return KindUnauthorized
	case "validation_error", "bad_request", "bad_idempotency_key", "payload_too_large":
		return KindValidation
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServerFault
	}
}
