package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/inference"
	"github.com/tbourn/go-triage-backend/internal/repo"
)

// scriptedModel returns queued replies in order and records every request.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	reqs    []inference.Request
}

func (m *scriptedModel) push(reply string, err error) *scriptedModel {
	m.replies = append(m.replies, reply)
	m.errs = append(m.errs, err)
	return m
}

func (m *scriptedModel) Generate(_ context.Context, req inference.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if len(m.replies) == 0 {
		return "", fmt.Errorf("scriptedModel: no reply queued")
	}
	r, e := m.replies[0], m.errs[0]
	m.replies, m.errs = m.replies[1:], m.errs[1:]
	return r, e
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

// sessionRepo proxies the real repo functions and can fail the n-th save.
type sessionRepo struct {
	saves    int
	failSave map[int]error
}

func (r *sessionRepo) GetChatSession(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatSession, error) {
	return repo.GetChatSession(ctx, db, userID)
}

func (r *sessionRepo) SaveChatSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error {
	r.saves++
	if err, ok := r.failSave[r.saves]; ok {
		return err
	}
	return repo.SaveChatSession(ctx, db, s)
}

func (r *sessionRepo) DeleteChatSession(ctx context.Context, db *gorm.DB, userID string) error {
	return repo.DeleteChatSession(ctx, db, userID)
}

func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}
