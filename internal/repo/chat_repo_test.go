package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetChatSession_Missing(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{})
	s, err := GetChatSession(context.Background(), db, "nobody")
	if s != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound), got (%v, %v)", s, err)
	}
}

func TestSaveChatSession_InsertThenReplace(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{})
	ctx := context.Background()

	first := &domain.ChatSession{
		UserID:   "u1",
		Language: "en",
		History:  []domain.ChatTurn{{Role: domain.RoleUser, Parts: []string{"hi"}}},
	}
	if err := SaveChatSession(ctx, db, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := &domain.ChatSession{
		UserID:   "u1",
		Language: "de",
		History: []domain.ChatTurn{
			{Role: domain.RoleUser, Parts: []string{"hallo"}},
			{Role: domain.RoleModel, Parts: []string{`{"text":"Wo?"}`}},
		},
		Terminal: true,
	}
	if err := SaveChatSession(ctx, db, second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := GetChatSession(ctx, db, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Language != "de" || !got.Terminal || len(got.History) != 2 || got.History[1].Role != domain.RoleModel {
		t.Fatalf("unexpected session after replace: %+v", got)
	}

	var n int64
	db.Model(&domain.ChatSession{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, got %d", n)
	}
}

func TestSaveChatSession_NilHistoryStoredAsEmpty(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{})
	ctx := context.Background()
	if err := SaveChatSession(ctx, db, &domain.ChatSession{UserID: "u2", Language: "en"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := GetChatSession(ctx, db, "u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.History == nil || len(got.History) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", got.History)
	}
}

func TestDeleteChatSession(t *testing.T) {
	db := newTestDB(t, &domain.ChatSession{})
	ctx := context.Background()

	if err := DeleteChatSession(ctx, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting missing session, got %v", err)
	}
	if err := SaveChatSession(ctx, db, &domain.ChatSession{UserID: "u3", Language: "en"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := DeleteChatSession(ctx, db, "u3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetChatSession(ctx, db, "u3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestSaveChatSession_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if err := SaveChatSession(context.Background(), db, &domain.ChatSession{UserID: "u", Language: "en"}); err == nil {
		t.Fatalf("expected error when table is missing")
	}
}
