package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/backend"
)

// SessionStorage persists the device's current session across restarts.
type SessionStorage interface {
	Load(ctx context.Context) (*backend.Session, error)
	Save(ctx context.Context, session *backend.Session) error
	Clear(ctx context.Context) error
}

type storedSession struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresAt    time.Time         `json:"expires_at"`
	UserID       string            `json:"user_id"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

func encodeSession(s *backend.Session) storedSession {
	out := storedSession{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt}
	if s.User != nil {
		out.UserID = s.User.ID
		out.Email = s.User.Email
		out.Phone = s.User.Phone
		out.Metadata = s.User.Metadata
		out.CreatedAt = s.User.CreatedAt
	}
	return out
}

func (s storedSession) decode() *backend.Session {
	return &backend.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User: &backend.User{
			ID:        s.UserID,
			Email:     s.Email,
			Phone:     s.Phone,
			Metadata:  s.Metadata,
			CreatedAt: s.CreatedAt,
		},
	}
}

// RedisSessionStorage keeps the session of one device under a Redis key.
type RedisSessionStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSessionStorage stores the session for deviceID, expiring with the
// refresh token lifetime.
func NewRedisSessionStorage(client *redis.Client, deviceID string, ttl time.Duration) *RedisSessionStorage {
	return &RedisSessionStorage{client: client, key: "onebills:device-session:" + deviceID, ttl: ttl}
}

func (s *RedisSessionStorage) Load(ctx context.Context) (*backend.Session, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var stored storedSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return stored.decode(), nil
}

func (s *RedisSessionStorage) Save(ctx context.Context, session *backend.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	payload, err := json.Marshal(encodeSession(session))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, s.ttl).Err()
}

func (s *RedisSessionStorage) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// MemorySessionStorage keeps the session in process memory.
type MemorySessionStorage struct {
	mu      sync.Mutex
	session *storedSession
}

func (s *MemorySessionStorage) Load(_ context.Context) (*backend.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	return s.session.decode(), nil
}

func (s *MemorySessionStorage) Save(_ context.Context, session *backend.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.session = nil
		return nil
	}
	stored := encodeSession(session)
	s.session = &stored
	return nil
}

func (s *MemorySessionStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
