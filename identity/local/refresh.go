package localidp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrRefreshNotFound is returned when a refresh token is unknown or expired.
var ErrRefreshNotFound = errors.New("refresh token not found or expired")

// RefreshStore persists refresh sessions between access-token renewals.
type RefreshStore interface {
	Save(ctx context.Context, token, userID string, expiresAt time.Time) error
	// Lookup returns the user id a live token belongs to.
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

const refreshKeyPrefix = "shule:refresh:"

type refreshRecord struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisRefreshStore keeps refresh sessions in redis with a TTL.
type RedisRefreshStore struct {
	client *redis.Client
}

var _ RefreshStore = (*RedisRefreshStore)(nil)

func NewRedisRefreshStore(redisURL string) (*RedisRefreshStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return NewRedisRefreshStoreWithClient(redis.NewClient(opts)), nil
}

func NewRedisRefreshStoreWithClient(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

func (s *RedisRefreshStore) Save(ctx context.Context, token, userID string, expiresAt time.Time) error {
	data, err := json.Marshal(refreshRecord{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "marshalling refresh record")
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("refresh expiry is in the past")
	}
	return s.client.Set(ctx, refreshKeyPrefix+token, data, ttl).Err()
}

func (s *RedisRefreshStore) Lookup(ctx context.Context, token string) (string, error) {
	data, err := s.client.Get(ctx, refreshKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return "", ErrRefreshNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "looking up refresh token")
	}
	var rec refreshRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", errors.Wrap(err, "unmarshalling refresh record")
	}
	return rec.UserID, nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, refreshKeyPrefix+token).Err()
}

func (s *RedisRefreshStore) Close() error { return s.client.Close() }

// DummyRefreshStore is the in-memory counterpart for tests.
type DummyRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]dummyRefreshEntry
}

type dummyRefreshEntry struct {
	userID    string
	expiresAt time.Time
}

var _ RefreshStore = (*DummyRefreshStore)(nil)

func NewDummyRefreshStore() *DummyRefreshStore {
	return &DummyRefreshStore{tokens: make(map[string]dummyRefreshEntry)}
}

func (s *DummyRefreshStore) Save(_ context.Context, token, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = dummyRefreshEntry{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *DummyRefreshStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrRefreshNotFound
	}
	return entry.userID, nil
}

func (s *DummyRefreshStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
