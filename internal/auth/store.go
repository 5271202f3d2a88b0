package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix     = "onebills:otp:"
	refreshKeyPrefix = "onebills:refresh:"
)

// OTPRecord is a pending one-time code for a phone number.
type OTPRecord struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// RefreshRecord binds a refresh token to an account and session.
type RefreshRecord struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps server-side auth state: pending codes and refresh tokens.
// OTP records are retained for keep, past their own expiry, so a late
// verification can be told apart from one that was never requested.
type Store interface {
	PutOTP(ctx context.Context, phone string, rec OTPRecord, keep time.Duration) error
	GetOTP(ctx context.Context, phone string) (OTPRecord, bool, error)
	DeleteOTP(ctx context.Context, phone string) error
	PutRefresh(ctx context.Context, token string, rec RefreshRecord, ttl time.Duration) error
	// TakeRefresh returns and removes the record, so each token is usable once.
	TakeRefresh(ctx context.Context, token string) (RefreshRecord, bool, error)
	DeleteRefresh(ctx context.Context, token string) error
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) PutOTP(ctx context.Context, phone string, rec OTPRecord, keep time.Duration) error {
	return s.put(ctx, otpKeyPrefix+phone, rec, keep)
}

func (s *RedisStore) GetOTP(ctx context.Context, phone string) (OTPRecord, bool, error) {
	var rec OTPRecord
	payload, err := s.client.Get(ctx, otpKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return OTPRecord{}, false, nil
	}
	if err != nil {
		return OTPRecord{}, false, fmt.Errorf("get otp: %w", err)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return OTPRecord{}, false, fmt.Errorf("decode otp: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) DeleteOTP(ctx context.Context, phone string) error {
	return s.client.Del(ctx, otpKeyPrefix+phone).Err()
}

func (s *RedisStore) PutRefresh(ctx context.Context, token string, rec RefreshRecord, ttl time.Duration) error {
	return s.put(ctx, refreshKeyPrefix+token, rec, ttl)
}

func (s *RedisStore) TakeRefresh(ctx context.Context, token string) (RefreshRecord, bool, error) {
	var rec RefreshRecord
	payload, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return RefreshRecord{}, false, nil
	}
	if err != nil {
		return RefreshRecord{}, false, fmt.Errorf("take refresh token: %w", err)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return RefreshRecord{}, false, fmt.Errorf("decode refresh token: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.client.Del(ctx, refreshKeyPrefix+token).Err()
}

func (s *RedisStore) put(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

type memoryEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.Mutex
	otps    map[string]memoryEntry[OTPRecord]
	refresh map[string]memoryEntry[RefreshRecord]
	nowF    func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		otps:    make(map[string]memoryEntry[OTPRecord]),
		refresh: make(map[string]memoryEntry[RefreshRecord]),
		nowF:    time.Now,
	}
}

func (s *MemoryStore) PutOTP(_ context.Context, phone string, rec OTPRecord, keep time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[phone] = memoryEntry[OTPRecord]{value: rec, expires: s.nowF().Add(keep)}
	return nil
}

func (s *MemoryStore) GetOTP(_ context.Context, phone string) (OTPRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.otps[phone]
	if !ok {
		return OTPRecord{}, false, nil
	}
	if !e.expires.After(s.nowF()) {
		delete(s.otps, phone)
		return OTPRecord{}, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) DeleteOTP(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, phone)
	return nil
}

func (s *MemoryStore) PutRefresh(_ context.Context, token string, rec RefreshRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = memoryEntry[RefreshRecord]{value: rec, expires: s.nowF().Add(ttl)}
	return nil
}

func (s *MemoryStore) TakeRefresh(_ context.Context, token string) (RefreshRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.refresh[token]
	if !ok {
		return RefreshRecord{}, false, nil
	}
	delete(s.refresh, token)
	if !e.expires.After(s.nowF()) {
		return RefreshRecord{}, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) DeleteRefresh(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, token)
	return nil
}
