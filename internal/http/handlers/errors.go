// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, domain codes
// name a triage failure the client can act on (restart the describe phase,
// retry later, re-authenticate).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "session_not_found",
//	  "message": "analysis session expired or already used; upload the photo again"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeValidation          = "validation_error"
	ErrCodeSessionNotFound     = "session_not_found"
	ErrCodeUnparsableResponse  = "unparsable_response"
	ErrCodeEmptyModelResponse  = "empty_model_response"
	ErrCodeUpstreamUnavailable = "upstream_unavailable"
)
