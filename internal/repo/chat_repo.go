// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ChatSession model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They only
// persist; history rules live in services.ChatService.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetChatSession fetches the session owned by userID, or ErrNotFound.
func GetChatSession(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveChatSession inserts or fully replaces the session of s.UserID in a
// single statement. A nil history is stored as an empty list.
func SaveChatSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error {
	if s.History == nil {
		s.History = []domain.ChatTurn{}
	}
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"language", "history", "terminal", "updated_at"}),
		}).
		Create(s).Error
}

// DeleteChatSession removes the session owned by userID. Deleting a missing
// session returns ErrNotFound.
func DeleteChatSession(ctx context.Context, db *gorm.DB, userID string) error {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.ChatSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
