package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker tracks revoked token ids until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisTokenRevoker stores revoked token ids in Redis with a TTL.
type RedisTokenRevoker struct {
	client redis.UniversalClient
}

// NewRedisTokenRevoker builds a revoker on a shared client.
func NewRedisTokenRevoker(client redis.UniversalClient) *RedisTokenRevoker {
	return &RedisTokenRevoker{client: client}
}

// Revoke marks jti as revoked for ttl. Non-positive TTLs are no-ops since
// the token has already expired.
func (r *RedisTokenRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || jti == "" {
		return nil
	}
	return r.client.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether jti is currently revoked.
func (r *RedisTokenRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revocationKey(jti string) string {
	return "sf:revoked:" + jti
}

// NewRedisClient builds the client shared by token stores, the rate
// limiter and the audit alerter.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
