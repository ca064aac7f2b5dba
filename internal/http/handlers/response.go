// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, the service-error mapping, and success writers.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "message": "the analysis service is busy, try again shortly"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-triage-backend/internal/http/middleware"
	"github.com/tbourn/go-triage-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"session_not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"analysis session expired or already used"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps a service error onto status, code, and a message the
// client can show. Unknown errors are logged in full and reported as
// internal_error without detail.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound,
			"analysis session expired or already used; upload the photo again")
	case errors.Is(err, services.ErrRateLimited):
		c.Header("Retry-After", "30")
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited,
			"the analysis service is busy, try again shortly")
	case errors.Is(err, services.ErrUnparsableResponse):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("unparsable model response")
		fail(c, http.StatusBadGateway, ErrCodeUnparsableResponse,
			"the analysis could not be read; please try again")
	case errors.Is(err, services.ErrEmptyModelResponse):
		fail(c, http.StatusBadGateway, ErrCodeEmptyModelResponse,
			"the analysis came back empty; please try again")
	case errors.Is(err, services.ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("model provider unavailable")
		fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable,
			"the analysis service is unavailable, try again later")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
