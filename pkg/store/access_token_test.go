package store

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func newRevoker(t *testing.T) *RedisTokenRevoker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenRevoker(client)
}

func TestAccessTokensSignAndVerify(t *testing.T) {
	tokens, err := NewAccessTokens(newRSAKey(t), nil, AccessTokenOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("new access tokens: %v", err)
	}
	ctx := context.Background()

	token, err := tokens.SignAccessToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userID, err := tokens.VerifyAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected subject %q", userID)
	}
	if _, err := tokens.VerifyAccessToken(ctx, token+"x"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}
	if _, err := tokens.VerifyAccessToken(ctx, ""); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected empty token to fail, got %v", err)
	}
}

func TestAccessTokensEnforceAudience(t *testing.T) {
	key := newRSAKey(t)
	signing, err := NewAccessTokens(key, nil, AccessTokenOptions{Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new signing: %v", err)
	}
	verify, err := NewAccessTokens(key, nil, AccessTokenOptions{Audience: "aud-b"})
	if err != nil {
		t.Fatalf("new verify: %v", err)
	}
	token, err := signing.SignAccessToken(context.Background(), "user-claim")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verify.VerifyAccessToken(context.Background(), token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestAccessTokensExpire(t *testing.T) {
	tokens, err := NewAccessTokens(newRSAKey(t), nil, AccessTokenOptions{TTL: time.Minute, Leeway: time.Second})
	if err != nil {
		t.Fatalf("new access tokens: %v", err)
	}
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	token, err := tokens.SignAccessToken(context.Background(), "user-exp")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := tokens.VerifyAccessToken(context.Background(), token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestAccessTokensRevokeByJTI(t *testing.T) {
	tokens, err := NewAccessTokens(newRSAKey(t), newRevoker(t), AccessTokenOptions{})
	if err != nil {
		t.Fatalf("new access tokens: %v", err)
	}
	ctx := context.Background()

	token, err := tokens.SignAccessToken(ctx, "user-revoke")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := tokens.RevokeAccessToken(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := tokens.VerifyAccessToken(ctx, token); !errors.Is(err, ErrAccessTokenRevoked) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

func TestAccessTokensVerifyPreviousKeyDuringRotation(t *testing.T) {
	oldKey := newRSAKey(t)
	oldIssuer, err := NewAccessTokens(oldKey, nil, AccessTokenOptions{KeyID: "kid-old"})
	if err != nil {
		t.Fatalf("old issuer: %v", err)
	}
	newIssuer, err := NewAccessTokens(newRSAKey(t), nil, AccessTokenOptions{KeyID: "kid-new"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	token, err := oldIssuer.SignAccessToken(context.Background(), "user-rotate")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newIssuer.VerifyAccessToken(context.Background(), token); err == nil {
		t.Fatalf("expected unknown key to fail before rotation")
	}
	newIssuer.AddVerifier("kid-old", &oldKey.PublicKey)
	if userID, err := newIssuer.VerifyAccessToken(context.Background(), token); err != nil || userID != "user-rotate" {
		t.Fatalf("expected previous key to verify, userID=%q err=%v", userID, err)
	}
}

func TestLoadRSAKeysFromPEM(t *testing.T) {
	key := newRSAKey(t)
	dir := t.TempDir()

	privatePath := filepath.Join(dir, "private.pem")
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(publicPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	loaded, err := LoadRSAPrivateKey(privatePath)
	if err != nil {
		t.Fatalf("load private key: %v", err)
	}
	if !loaded.Equal(key) {
		t.Fatalf("loaded private key mismatch")
	}
	pub, err := LoadRSAPublicKey(publicPath)
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if !pub.Equal(&key.PublicKey) {
		t.Fatalf("loaded public key mismatch")
	}
	if _, err := LoadRSAPrivateKey(filepath.Join(dir, "missing.pem")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}
