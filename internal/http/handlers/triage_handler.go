// Triage HTTP handlers.
//
// This file exposes the photo analysis endpoints:
//   - POST /ai/describe-skin-image   (phase 1: photo → analysis id)
//   - POST /ai/get-skin-conclusion   (phase 2: analysis id + answers → verdict)
//   - POST /ai/analyze-skin          (both phases; idempotent, used by offline replay)
//
// Images travel as base64 in JSON. The declared MIME type is checked against
// the decoded bytes so a mislabelled upload never reaches the model.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/http/middleware"
	"github.com/tbourn/go-triage-backend/internal/repo"
)

// ScopeAnalyzeSkin is the idempotency scope of POST /ai/analyze-skin.
const ScopeAnalyzeSkin = "analyze-skin"

//
// DTOs
//

// DescribeRequest is the JSON payload for the describe phase.
type DescribeRequest struct {
	// ImageData is the photo, base64 encoded (a data: URL prefix is accepted).
	ImageData string `json:"imageData" example:"iVBORw0KGgoAAAANSUhEUgAA..."`
	// MIMEType is the photo's declared type; detected from the bytes when empty.
	MIMEType string `json:"mimeType" example:"image/jpeg"`
}

// DescribeResponse carries the id of the new analysis session.
type DescribeResponse struct {
	AnalysisID string `json:"analysisId" example:"6f1c2a9e-4b7d-4a51-9d38-2f0e8c1b7a44"`
}

// ConclusionRequest is the JSON payload for the conclude phase.
type ConclusionRequest struct {
	// AnalysisID is the id returned by describe; it can be used once.
	AnalysisID string `json:"analysisId" example:"6f1c2a9e-4b7d-4a51-9d38-2f0e8c1b7a44"`
	// MCQAnswers maps symptom question ids to the chosen answers.
	MCQAnswers map[string]string `json:"mcqAnswers"`
	// Language is a BCP 47 tag; unknown or empty means English.
	Language string `json:"language" example:"en"`
}

// AnalyzeRequest is the JSON payload for the one-shot analysis.
type AnalyzeRequest = domain.AnalysisPayload

//
// Helpers
//

// bindJSON decodes the body into dst, answering 413 for oversized bodies and
// 400 for malformed ones.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return false
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
	return false
}

// decodeImage decodes base64 image data and reconciles the declared MIME type
// with the sniffed one. The sniffed type wins when they disagree.
func decodeImage(c *gin.Context, data, declared string) ([]byte, string, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "imageData is required")
		return nil, "", false
	}
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(data); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeValidation, "imageData is not valid base64")
			return nil, "", false
		}
	}

	detected := mimetype.Detect(raw)
	if !strings.HasPrefix(detected.String(), "image/") {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "imageData is not an image")
		return nil, "", false
	}
	mt := detected.String()
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && !detected.Is(declared) {
		middleware.LoggerFrom(c).Debug().
			Str("declared", declared).
			Str("detected", mt).
			Msg("image mime type mismatch")
	}
	return raw, mt, true
}

//
// Handlers
//

// DescribeSkinImage godoc
// @ID          describeSkinImage
// @Summary     Describe a skin photo (phase 1)
// @Description Produces an objective description of the photo and stores it in a single-use analysis session valid for 15 minutes.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.DescribeRequest  true  "Photo"
//
// @Success     200  {object}  handlers.DescribeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Empty model response"
// @Failure     503  {object}  handlers.ErrorResponse  "Model provider unavailable"
// @Router      /ai/describe-skin-image [post]
func (h *Handlers) DescribeSkinImage(c *gin.Context) {
	var req DescribeRequest
	if !bindJSON(c, &req) {
		return
	}
	img, mt, good := decodeImage(c, req.ImageData, req.MIMEType)
	if !good {
		return
	}

	id, err := h.triageSvc.Describe(c.Request.Context(), img, mt)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, DescribeResponse{AnalysisID: id})
}

// GetSkinConclusion godoc
// @ID          getSkinConclusion
// @Summary     Conclude a skin analysis (phase 2)
// @Description Consumes the analysis session and returns the triage verdict. The session is gone afterwards, even when the model call fails.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ConclusionRequest  true  "Analysis id and answers"
//
// @Success     200  {object}  domain.TriageResult
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Session expired, unknown, or used"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Unparsable or empty model response"
// @Failure     503  {object}  handlers.ErrorResponse  "Model provider unavailable"
// @Router      /ai/get-skin-conclusion [post]
func (h *Handlers) GetSkinConclusion(c *gin.Context) {
	var req ConclusionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.triageSvc.Conclude(c.Request.Context(), req.AnalysisID, req.MCQAnswers, req.Language)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// AnalyzeSkin godoc
// @ID          analyzeSkin
// @Summary     Analyze a skin photo in one call
// @Description Runs describe and conclude back to back. With an Idempotency-Key, a repeated request returns the stored verdict and sets Idempotency-Replayed: true.
// @Tags        Analysis
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Key for safe retries (the offline queue entry id)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.AnalyzeRequest  true  "Photo, answers, language"
//
// @Success     200  {object}  domain.TriageResult
// @Header      200  {string}  Idempotency-Replayed  "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Unparsable or empty model response"
// @Failure     503  {object}  handlers.ErrorResponse  "Model provider unavailable"
// @Router      /ai/analyze-skin [post]
func (h *Handlers) AnalyzeSkin(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	idemKey, hasKey := middleware.GetIdempotencyKey(c)

	// Replay path. A record that expired since the validator saw it falls
	// through to a fresh run.
	if hasKey && middleware.IsReplay(c) && h.db != nil {
		if rec, err := repo.GetIdempotency(ctx, h.db, uid, ScopeAnalyzeSkin, idemKey, time.Now().UTC()); err == nil {
			middleware.ObserveReplay(ScopeAnalyzeSkin)
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Response))
			return
		}
	}

	var req AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	img, mt, good := decodeImage(c, req.ImageData, req.MIMEType)
	if !good {
		return
	}

	res, err := h.triageSvc.Analyze(ctx, img, mt, req.MCQAnswers, req.Language)
	if err != nil {
		failService(c, err)
		return
	}

	// Store path: best effort.
	if hasKey && h.db != nil {
		if body, err := json.Marshal(res); err == nil {
			if _, err := repo.CreateIdempotency(ctx, h.db, uid, ScopeAnalyzeSkin, idemKey, string(body), http.StatusOK, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotent result")
			}
		}
	}
	ok(c, http.StatusOK, res)
}

// IdempotencyLookup reports stored results for middleware.IdempotencyValidator.
// Without a database nothing is ever replayed.
func (h *Handlers) IdempotencyLookup() middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		if h.db == nil {
			return false, nil
		}
		_, err := repo.GetIdempotency(ctx, h.db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}
