// Package services – ChatService
//
// This file implements the conversational triage. Each user has one stored
// session; every Send repairs the stored history, persists the new user turn,
// asks the model for the next step, and persists the model's turn. The model
// answers with JSON: either a follow-up question with suggested answers, or a
// final triage result that closes the session.
//
// If anything fails after the user turn was persisted, the session is written
// back without it so a retry does not leave two user turns in a row.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/inference"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	// GetChatSession returns the user's session or gorm.ErrRecordNotFound.
	GetChatSession(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatSession, error)

	// SaveChatSession inserts or replaces the user's session.
	SaveChatSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error

	// DeleteChatSession drops the user's session.
	DeleteChatSession(ctx context.Context, db *gorm.DB, userID string) error
}

// ChatService runs triage conversations.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat session repository used by this service.
	Repo ChatRepo
	// Model answers each turn.
	Model inference.Model

	// MaxMessageRunes caps user messages by rune length.
	MaxMessageRunes int
}

// NewChatService constructs a ChatService with a 2000-rune message cap.
func NewChatService(db *gorm.DB, r ChatRepo, m inference.Model) *ChatService {
	return &ChatService{DB: db, Repo: r, Model: m, MaxMessageRunes: 2000}
}

// Send adds message to the user's conversation and returns the model's reply.
// A session whose language differs from lang, or which already ended with a
// triage result, is replaced by a fresh one.
func (s *ChatService) Send(ctx context.Context, userID, message, lang string) (domain.ChatReply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("language", lang),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return domain.ChatReply{}, invalid("message is required")
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return domain.ChatReply{}, invalid("message exceeds %d characters", s.MaxMessageRunes)
	}
	lang = inference.CanonicalLanguage(lang)

	sess, err := s.Repo.GetChatSession(ctx, s.DB, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sess = nil
	case err != nil:
		return domain.ChatReply{}, err
	}
	if sess == nil || sess.Language != lang || sess.Terminal {
		sess = &domain.ChatSession{UserID: userID, Language: lang}
	}

	prior := SanitizeHistory(sess.History)
	span.SetAttributes(attribute.Int("history.turns", len(prior)))

	turns := make([]domain.ChatTurn, 0, len(prior)+2)
	turns = append(turns, prior...)
	turns = append(turns, domain.ChatTurn{Role: domain.RoleUser, Parts: []string{message}})

	sess.History = turns
	sess.Terminal = false
	if err := s.Repo.SaveChatSession(ctx, s.DB, sess); err != nil {
		return domain.ChatReply{}, err
	}

	raw, reply, err := s.ask(ctx, turns, lang)
	if err != nil {
		sess.History = prior
		if rbErr := s.Repo.SaveChatSession(ctx, s.DB, sess); rbErr != nil {
			return domain.ChatReply{}, errors.Join(err, fmt.Errorf("rollback chat turn: %w", rbErr))
		}
		return domain.ChatReply{}, err
	}

	sess.History = append(turns, domain.ChatTurn{Role: domain.RoleModel, Parts: []string{raw}})
	sess.Terminal = reply.TriageResult != nil
	if err := s.Repo.SaveChatSession(ctx, s.DB, sess); err != nil {
		return domain.ChatReply{}, err
	}
	return reply, nil
}

// Reset discards the user's conversation. Resetting a missing session is not
// an error.
func (s *ChatService) Reset(ctx context.Context, userID string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Reset", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := s.Repo.DeleteChatSession(ctx, s.DB, userID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *ChatService) ask(ctx context.Context, turns []domain.ChatTurn, lang string) (string, domain.ChatReply, error) {
	contents := make([]inference.Content, 0, len(turns))
	for _, t := range turns {
		parts := make([]inference.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			parts = append(parts, inference.TextPart(p))
		}
		contents = append(contents, inference.Content{Role: t.Role, Parts: parts})
	}

	raw, err := s.Model.Generate(ctx, inference.Request{
		System:   inference.ChatSystemPrompt(lang),
		Contents: contents,
		JSON:     true,
	})
	if err != nil {
		return "", domain.ChatReply{}, modelErr(err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ChatReply{}, ErrEmptyModelResponse
	}
	reply, err := ParseChatReply(raw)
	if err != nil {
		return "", domain.ChatReply{}, err
	}
	return raw, reply, nil
}

// ParseChatReply decodes the model's JSON answer. A triage result must carry
// a known conclusion and an explanation; otherwise the reply needs text.
func ParseChatReply(raw string) (domain.ChatReply, error) {
	raw = stripFence(raw)
	var r domain.ChatReply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	if r.TriageResult != nil {
		tr := *r.TriageResult
		tr.Conclusion = strings.ToUpper(strings.TrimSpace(tr.Conclusion))
		tr.Explanation = strings.TrimSpace(tr.Explanation)
		tr.DoctorSuggestion = strings.TrimSpace(tr.DoctorSuggestion)
		if strings.EqualFold(tr.DoctorSuggestion, "NONE") {
			tr.DoctorSuggestion = ""
		}
		if len(tr.SelfCareTips) == 0 {
			tr.SelfCareTips = nil
		}
		if !tr.Valid() {
			return domain.ChatReply{}, fmt.Errorf("%w: invalid triageResult", ErrUnparsableResponse)
		}
		return domain.ChatReply{TriageResult: &tr}, nil
	}
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return domain.ChatReply{}, fmt.Errorf("%w: reply has neither text nor triageResult", ErrUnparsableResponse)
	}
	return r, nil
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
