package store

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenIssuer   = "studyforest-auth"
	defaultTokenAudience = "studyforest-api"
	defaultTokenKeyID    = "sf-active"
	defaultTokenLeeway   = 30 * time.Second
	defaultTokenTTL      = 15 * time.Minute
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenRevoked = errors.New("access token revoked")
)

// AccessTokenOptions configures issuance and claim validation.
type AccessTokenOptions struct {
	KeyID    string
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// AccessTokens signs and verifies RS256 access tokens. A revoker, when
// set, rejects tokens whose jti was revoked before expiry.
type AccessTokens struct {
	key       *rsa.PrivateKey
	kid       string
	verifiers map[string]*rsa.PublicKey
	revoker   TokenRevoker

	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
}

// NewAccessTokens builds an issuer around an RSA signing key.
func NewAccessTokens(key *rsa.PrivateKey, revoker TokenRevoker, opts AccessTokenOptions) (*AccessTokens, error) {
	if key == nil {
		return nil, errors.New("access token signing key is required")
	}
	opts = normalizeAccessTokenOptions(opts)
	return &AccessTokens{
		key:       key,
		kid:       opts.KeyID,
		verifiers: map[string]*rsa.PublicKey{opts.KeyID: &key.PublicKey},
		revoker:   revoker,
		issuer:    opts.Issuer,
		audience:  opts.Audience,
		ttl:       opts.TTL,
		leeway:    opts.Leeway,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddVerifier accepts tokens signed by a previous key during rotation.
func (a *AccessTokens) AddVerifier(kid string, pub *rsa.PublicKey) {
	kid = strings.TrimSpace(kid)
	if kid == "" || pub == nil {
		return
	}
	a.verifiers[kid] = pub
}

// TTL reports the lifetime of issued tokens.
func (a *AccessTokens) TTL() time.Duration {
	return a.ttl
}

// SignAccessToken issues a token whose subject is userID.
func (a *AccessTokens) SignAccessToken(_ context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("access token subject is required")
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		Audience:  jwt.ClaimStrings{a.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        newTokenID(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = a.kid
	return token.SignedString(a.key)
}

// VerifyAccessToken validates a token and returns its subject.
func (a *AccessTokens) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := a.parse(token)
	if err != nil {
		return "", err
	}
	if a.revoker != nil {
		revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return "", err
		}
		if revoked {
			return "", ErrAccessTokenRevoked
		}
	}
	return claims.Subject, nil
}

// RevokeAccessToken blocks a token until it expires. Invalid tokens are
// ignored.
func (a *AccessTokens) RevokeAccessToken(ctx context.Context, token string) error {
	if a.revoker == nil {
		return nil
	}
	claims, err := a.parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}
	return a.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(a.now()))
}

func (a *AccessTokens) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, ErrInvalidAccessToken
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := a.verifiers[strings.TrimSpace(kid)]
		if !ok {
			return nil, errors.New("unknown token key")
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(a.leeway),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return claims, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if strings.TrimSpace(claims.ID) == "" || strings.TrimSpace(claims.Subject) == "" {
		return claims, ErrInvalidAccessToken
	}
	return claims, nil
}

// LoadRSAPrivateKey reads a PKCS#1 or PKCS#8 PEM private key.
func LoadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not rsa")
	}
	return key, nil
}

// LoadRSAPublicKey reads a PKIX PEM public key or certificate.
func LoadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not rsa")
		}
		return pub, nil
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.New("failed to parse rsa public key")
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate public key is not rsa")
	}
	return pub, nil
}

func newTokenID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func normalizeAccessTokenOptions(opts AccessTokenOptions) AccessTokenOptions {
	opts.KeyID = strings.TrimSpace(opts.KeyID)
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.KeyID == "" {
		opts.KeyID = defaultTokenKeyID
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultTokenIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultTokenAudience
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTokenTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultTokenLeeway
	}
	return opts
}
