package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore keeps sessions in Redis so several API replicas can share them.
// Expiry is delegated to the key TTL; Consume uses GETDEL so that exactly one
// caller wins.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long a description remains claimable.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "triage".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(15 * time.Minute),
//	    WithPrefix("triage"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: "triage",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyDescription
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.key(id), description, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	sessionsCreated.WithLabelValues(backendRedis).Inc()
	return id, nil
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, id string) (string, error) {
	sess, err := s.Claim(ctx, id)
	return sess.Description, err
}

// Claim implements Store. PTTL and GETDEL run in one MULTI so the reported
// deadline belongs to the value that was taken.
func (s *RedisStore) Claim(ctx context.Context, id string) (Session, error) {
	if id == "" {
		sessionsMissed.WithLabelValues(backendRedis).Inc()
		return Session{}, ErrNotFound
	}
	key := s.key(id)
	var (
		ttlCmd *redis.DurationCmd
		getCmd *redis.StringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ttlCmd = p.PTTL(ctx, key)
		getCmd = p.GetDel(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("redis getdel failed: %w", err)
	}
	desc, err := getCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sessionsMissed.WithLabelValues(backendRedis).Inc()
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("redis getdel failed: %w", err)
	}
	left := ttlCmd.Val()
	if left <= 0 {
		left = s.ttl
	}
	sessionsConsumed.WithLabelValues(backendRedis).Inc()
	return Session{ID: id, Description: desc, ExpiresAt: time.Now().Add(left)}, nil
}

// Restore implements Store using SET NX with the remaining TTL.
func (s *RedisStore) Restore(ctx context.Context, sess Session) error {
	if sess.ID == "" || strings.TrimSpace(sess.Description) == "" {
		return ErrEmptyDescription
	}
	left := time.Until(sess.ExpiresAt)
	if left < time.Millisecond {
		return nil
	}
	ok, err := s.client.SetNX(ctx, s.key(sess.ID), sess.Description, left).Result()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if ok {
		sessionsRestored.WithLabelValues(backendRedis).Inc()
	}
	return nil
}

// Evict implements Store.
func (s *RedisStore) Evict(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping checks connectivity; used by the server at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":analysis:" + id
}
