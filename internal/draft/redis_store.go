package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/platewise/extraction-engine/internal/domain"
)

// redisCmdable is the subset of *redis.Client the store uses.
type redisCmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisStore implements Store on Redis, leaning on native key TTLs: a draft
// is written once with its expiry and Redis forgets it on time, so
// SweepExpired has nothing to do.
type RedisStore struct {
	client redisCmdable
	prefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// NewRedisStore creates a new Redis-backed draft store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "xe:"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(id uuid.UUID) string {
	return s.prefix + "draft:" + id.String()
}

// Create writes a new draft with the TTL applied as the key expiry.
func (s *RedisStore) Create(ctx context.Context, p CreateParams) (*domain.Draft, error) {
	now := time.Now().UTC()
	ttl := p.ttl()
	d := &domain.Draft{
		ID:        uuid.New(),
		OwnerID:   p.OwnerID,
		Kind:      p.Kind,
		Payload:   p.Payload,
		Source:    p.Source,
		Prompt:    p.Prompt,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis set draft: %w", err)
	}
	return d, nil
}

// Get retrieves a draft by id, optionally restricted to an owner. An
// ownership mismatch is indistinguishable from absence, matching the SQL
// store's filtered query.
func (s *RedisStore) Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*domain.Draft, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft: %w", err)
	}

	var d domain.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if owner != nil && d.OwnerID != *owner {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

// Delete removes a draft by id, optionally restricted to an owner.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (bool, error) {
	if owner != nil {
		if _, err := s.Get(ctx, id, owner); errors.Is(err, domain.ErrNotFound) {
			return false, nil
		} else if err != nil {
			return false, err
		}
	}
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete draft: %w", err)
	}
	return n > 0, nil
}

// SweepExpired is a no-op: Redis evicts expired draft keys itself.
func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
