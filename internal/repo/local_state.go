package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

// GetLocalState returns the stored document for key, or ErrNotFound.
func GetLocalState(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var row domain.LocalState
	if err := db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		return "", err
	}
	return row.Value, nil
}

// PutLocalState replaces the document stored under key in one statement.
func PutLocalState(ctx context.Context, db *gorm.DB, key, value string) error {
	row := &domain.LocalState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}
