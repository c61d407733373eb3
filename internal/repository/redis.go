package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sparkclean/internal/config"
	"sparkclean/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned for unknown, revoked or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	ErrNoRedisClient   = errors.New("redis client is nil")
)

const keyPrefix = "sparkclean:"

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrNoRedisClient
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// RedisSessionStore keeps each session as a JSON value whose key expires
// together with the session.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(id string) string {
	return keyPrefix + "session:" + id
}

func rateLimitKey(key string) string {
	return keyPrefix + "rate_limit:" + key
}

func (r *RedisSessionStore) StoreSession(ctx context.Context, session *models.Session) error {
	if r.client == nil {
		return ErrNoRedisClient
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if r.client == nil {
		return nil, ErrNoRedisClient
	}
	payload, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session := new(models.Session)
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

func (r *RedisSessionStore) RevokeSession(ctx context.Context, id string) error {
	if r.client == nil {
		return ErrNoRedisClient
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CheckRateLimit counts hits in a fixed window that starts at the first hit.
// The increment and the expiry are sent in one transaction so a crash between
// them cannot leave a counter that never resets.
func (r *RedisSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrNoRedisClient
	}

	k := rateLimitKey(key)
	var hits *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to count rate limit hit: %w", err)
	}
	return hits.Val() <= int64(limit), nil
}
