package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRegistry is the distributed, TTL-based store whose entry
// presence is the sole source of truth for "is this session still valid".
// Entries are keyed by (principal id, session id) and expire on their own
// when the matching token does, so abandoned sessions need no sweeper.
//
// Infrastructure failures surface as retryable errors; they must never be
// interpreted as "session is valid" or as "unauthenticated".
type SessionRegistry interface {
	Put(ctx context.Context, principalID, sessionID uuid.UUID, value string, ttl time.Duration) error
	Exists(ctx context.Context, principalID, sessionID uuid.UUID) (bool, error)
	Delete(ctx context.Context, principalID, sessionID uuid.UUID) error
}

// RedisRegistryConfig configures the Redis-backed registry.
type RedisRegistryConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	// Timeout bounds every registry call. Zero uses a 2s default.
	Timeout time.Duration
}

type redisRegistry struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisSessionRegistry dials Redis and verifies connectivity. The
// returned registry owns its client.
func NewRedisSessionRegistry(cfg RedisRegistryConfig) (SessionRegistry, error) {
	if cfg.Addr == "" {
		return nil, goerrors.New("redis address required", goerrors.CategoryValidation)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, wrapRegistryErr(err, "redis ping failed")
	}

	return NewRedisSessionRegistryFromClient(client, cfg.Prefix, cfg.Timeout), nil
}

// NewSessionRegistry dials Redis for the auth configuration. When the
// registry config leaves Timeout unset, the bound comes from
// cfg.GetRegistryTimeout() so every registry call stays bounded by the
// same knob the rest of the package is configured with.
func NewSessionRegistry(cfg Config, rcfg RedisRegistryConfig) (SessionRegistry, error) {
	if rcfg.Timeout <= 0 {
		rcfg.Timeout = cfg.GetRegistryTimeout()
	}
	return NewRedisSessionRegistry(rcfg)
}

// NewRedisSessionRegistryFromClient wraps an existing client so the host
// application keeps one connection pool per process and injects it here.
func NewRedisSessionRegistryFromClient(client *redis.Client, prefix string, timeout time.Duration) SessionRegistry {
	if prefix == "" {
		prefix = "auth:session:"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &redisRegistry{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (r *redisRegistry) key(principalID, sessionID uuid.UUID) string {
	return r.prefix + principalID.String() + ":" + sessionID.String()
}

func (r *redisRegistry) Put(ctx context.Context, principalID, sessionID uuid.UUID, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(principalID, sessionID), value, ttl).Err(); err != nil {
		return wrapRegistryErr(err, "failed to write session registry entry")
	}
	return nil
}

func (r *redisRegistry) Exists(ctx context.Context, principalID, sessionID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Exists(ctx, r.key(principalID, sessionID)).Result()
	if err != nil {
		return false, wrapRegistryErr(err, "failed to check session registry entry")
	}
	return n > 0, nil
}

func (r *redisRegistry) Delete(ctx context.Context, principalID, sessionID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// DEL of a missing key succeeds; Delete stays idempotent.
	if err := r.client.Del(ctx, r.key(principalID, sessionID)).Err(); err != nil {
		return wrapRegistryErr(err, "failed to delete session registry entry")
	}
	return nil
}
