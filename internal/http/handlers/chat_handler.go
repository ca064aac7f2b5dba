// Chat HTTP handlers.
//
// This file holds the handler wiring shared by all endpoints and the
// conversational triage endpoints:
//   - POST   /ai/chat   (send a message, get the next question or a verdict)
//   - DELETE /ai/chat   (discard the conversation)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

//
// Service contracts (context-aware)
//

// TriageService runs the two-phase photo analysis.
type TriageService interface {
	// Describe stores a description of image and returns the analysis id.
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
	// Conclude consumes analysisID and returns the verdict.
	Conclude(ctx context.Context, analysisID string, answers map[string]string, lang string) (domain.TriageResult, error)
	// Analyze runs both phases in one call.
	Analyze(ctx context.Context, image []byte, mimeType string, answers map[string]string, lang string) (domain.TriageResult, error)
}

// ChatService runs the conversational triage.
type ChatService interface {
	// Send appends message to the user's conversation and returns the reply.
	Send(ctx context.Context, userID, message, lang string) (domain.ChatReply, error)
	// Reset discards the user's conversation.
	Reset(ctx context.Context, userID string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the triage API.
type Handlers struct {
	triageSvc TriageService
	chatSvc   ChatService

	// db stores idempotent results; nil disables idempotency.
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance. Idempotent replays of analyze-skin are
// stored in db for idemTTL.
func New(triageSvc TriageService, chatSvc ChatService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{triageSvc: triageSvc, chatSvc: chatSvc, db: db, idemTTL: idemTTL}
}

// userID returns the caller resolved by the auth middleware.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}

//
// DTOs
//

// ChatRequest is the JSON payload for one chat turn.
type ChatRequest struct {
	// Message is the user's text (1..CHAT_MAX_MESSAGE_RUNES runes).
	Message string `json:"message" example:"I have had a red itchy patch on my arm for three days"`
	// Language is a BCP 47 tag; unknown or empty means English.
	Language string `json:"language" example:"en"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Send a triage chat message
// @Description Appends the message to the caller's conversation and returns either a follow-up question with suggested answers or a final triage result. A conversation that already ended, or whose language changes, starts over.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ChatRequest  true  "Chat message"
//
// @Success     200  {object}  domain.ChatReply
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     502  {object}  handlers.ErrorResponse  "Unparsable or empty model response"
// @Failure     503  {object}  handlers.ErrorResponse  "Model provider unavailable"
// @Router      /ai/chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	reply, err := h.chatSvc.Send(c.Request.Context(), userID(c), req.Message, req.Language)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, reply)
}

// ResetChat godoc
// @ID          resetChat
// @Summary     Discard the triage conversation
// @Description Deletes the caller's stored conversation. Succeeds when there is none.
// @Tags        Chat
// @Security    BearerAuth
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /ai/chat [delete]
func (h *Handlers) ResetChat(c *gin.Context) {
	if err := h.chatSvc.Reset(c.Request.Context(), userID(c)); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
