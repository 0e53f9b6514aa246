package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/diewo77/go-onboarding/internal/apperr"
)

// Store records which session ids are still open.
type Store interface {
	Add(ctx context.Context, sid string, userID uuid.UUID, ttl time.Duration) error
	Active(ctx context.Context, sid string) (bool, error)
	Remove(ctx context.Context, sid string) error
}

// MemoryStore keeps sessions in process memory. Used in tests and single
// instance development setups.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Add(_ context.Context, sid string, _ uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Active(_ context.Context, sid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[sid]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.sessions, sid)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

// RedisStore keeps one expiring key per session.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "onboarding:session:"}
}

func (s *RedisStore) key(sid string) string { return s.prefix + sid }

func (s *RedisStore) Add(ctx context.Context, sid string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(sid), userID.String(), ttl).Err(); err != nil {
		return apperr.Unavailable(err)
	}
	return nil
}

func (s *RedisStore) Active(ctx context.Context, sid string) (bool, error) {
	err := s.client.Get(ctx, s.key(sid)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Unavailable(err)
	}
	return true, nil
}

func (s *RedisStore) Remove(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, s.key(sid)).Err(); err != nil {
		return apperr.Unavailable(err)
	}
	return nil
}
