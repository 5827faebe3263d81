package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates token not found or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates a rotated-out token was presented again.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RefreshTokenStore issues rotating refresh tokens grouped into families.
// Presenting a token that was already rotated out revokes its family.
type RefreshTokenStore interface {
	NewToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	RotateToken(ctx context.Context, token string, ttl time.Duration) (userID string, next string, err error)
	DeleteToken(ctx context.Context, token string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// RedisRefreshTokenStore keeps families as Redis hashes. Every hash a
// family ever issued keeps pointing at it so reuse is detectable.
type RedisRefreshTokenStore struct {
	client redis.UniversalClient
}

// NewRedisRefreshTokenStore builds a store on a shared client.
func NewRedisRefreshTokenStore(client redis.UniversalClient) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

// NewToken starts a new family for userID.
func (s *RedisRefreshTokenStore) NewToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", err
	}
	familyID, err := randomHex(16)
	if err != nil {
		return "", err
	}
	hash := refreshTokenHash(token)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.linkToken(ctx, pipe, hash, familyID, ttl)
		pipe.HSet(ctx, familyKey(familyID), "user", userID, "current", hash)
		pipe.Expire(ctx, familyKey(familyID), ttl)
		pipe.SAdd(ctx, userFamiliesKey(userID), familyID)
		pipe.Expire(ctx, userFamiliesKey(userID), ttl)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// RotateToken exchanges the family's current token for a new one.
func (s *RedisRefreshTokenStore) RotateToken(ctx context.Context, token string, ttl time.Duration) (string, string, error) {
	hash := refreshTokenHash(token)
	for {
		familyID, err := s.client.Get(ctx, tokenKey(hash)).Result()
		if errors.Is(err, redis.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", "", err
		}

		var userID, next string
		replay := false
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			family, err := tx.HGetAll(ctx, familyKey(familyID)).Result()
			if err != nil {
				return err
			}
			userID = family["user"]
			if userID == "" || family["current"] == "" {
				return ErrInvalidRefreshToken
			}
			if family["current"] != hash {
				replay = true
				return ErrRefreshTokenReplay
			}
			next, err = randomHex(32)
			if err != nil {
				return err
			}
			nextHash := refreshTokenHash(next)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.linkToken(ctx, pipe, nextHash, familyID, ttl)
				pipe.HSet(ctx, familyKey(familyID), "current", nextHash)
				pipe.Expire(ctx, familyKey(familyID), ttl)
				pipe.Expire(ctx, userFamiliesKey(userID), ttl)
				return nil
			})
			return err
		}, familyKey(familyID))

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case replay:
			if revokeErr := s.revokeFamily(ctx, familyID, userID); revokeErr != nil {
				return "", "", revokeErr
			}
			return "", "", ErrRefreshTokenReplay
		case err != nil:
			return "", "", err
		}
		return userID, next, nil
	}
}

// DeleteToken revokes the family containing token.
func (s *RedisRefreshTokenStore) DeleteToken(ctx context.Context, token string) error {
	familyID, err := s.client.Get(ctx, tokenKey(refreshTokenHash(token))).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	userID, err := s.client.HGet(ctx, familyKey(familyID), "user").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return s.revokeFamily(ctx, familyID, userID)
}

// RevokeUserRefreshTokens revokes every family issued to userID.
func (s *RedisRefreshTokenStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	families, err := s.client.SMembers(ctx, userFamiliesKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, familyID := range families {
		if err := s.revokeFamily(ctx, familyID, userID); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, userFamiliesKey(userID)).Err()
}

func (s *RedisRefreshTokenStore) linkToken(ctx context.Context, pipe redis.Pipeliner, hash, familyID string, ttl time.Duration) {
	pipe.Set(ctx, tokenKey(hash), familyID, ttl)
	pipe.SAdd(ctx, familyTokensKey(familyID), hash)
	pipe.Expire(ctx, familyTokensKey(familyID), ttl)
}

func (s *RedisRefreshTokenStore) revokeFamily(ctx context.Context, familyID, userID string) error {
	hashes, err := s.client.SMembers(ctx, familyTokensKey(familyID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hash := range hashes {
			pipe.Del(ctx, tokenKey(hash))
		}
		pipe.Del(ctx, familyTokensKey(familyID), familyKey(familyID))
		if userID != "" {
			pipe.SRem(ctx, userFamiliesKey(userID), familyID)
		}
		return nil
	})
	return err
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func tokenKey(hash string) string          { return "sf:refresh:token:" + hash }
func familyKey(id string) string           { return "sf:refresh:family:" + id }
func familyTokensKey(id string) string     { return "sf:refresh:family_tokens:" + id }
func userFamiliesKey(userID string) string { return "sf:refresh:user:" + userID }
