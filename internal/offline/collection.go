// Package offline keeps analysis requests made without a connection and
// replays them when the connection returns.
//
// Pending requests and finished results live in two durable collections.
// Every write replaces a whole collection in one statement, so an abandoned
// replay or a crash leaves either the old or the new list, never a mix.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/go-triage-backend/internal/repo"
)

// Collection keys in the local state table.
const (
	KeyPendingQueue = "offline.pending"
	KeyResults      = "offline.results"
)

// Collection is an ordered list persisted as one unit.
type Collection[T any] interface {
	Load(ctx context.Context) ([]T, error)
	SaveAll(ctx context.Context, items []T) error
}

// SQLiteCollection stores a collection as a JSON document in the local
// state table.
type SQLiteCollection[T any] struct {
	db  *gorm.DB
	key string
}

// NewSQLiteCollection returns the collection stored under key.
func NewSQLiteCollection[T any](db *gorm.DB, key string) *SQLiteCollection[T] {
	return &SQLiteCollection[T]{db: db, key: key}
}

// Load returns the stored items, or an empty list when nothing was saved yet.
func (c *SQLiteCollection[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := repo.GetLocalState(ctx, c.db, c.key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return items, nil
}

// SaveAll replaces the stored list.
func (c *SQLiteCollection[T]) SaveAll(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := repo.PutLocalState(ctx, c.db, c.key, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// MemoryCollection keeps a collection in process memory.
type MemoryCollection[T any] struct {
	mu    sync.Mutex
	items []T
}

// Load returns a copy of the items.
func (c *MemoryCollection[T]) Load(context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...), nil
}

// SaveAll replaces the items with a copy of items.
func (c *MemoryCollection[T]) SaveAll(_ context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
	return nil
}
