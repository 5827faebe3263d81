package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/security"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/auth"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

const (
	defaultRefreshTTL = 7 * 24 * time.Hour
	maxNameLength     = 50
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Users         store.UserStore
	Tokens        *store.AccessTokens
	RefreshTokens store.RefreshTokenStore
	RefreshTTL    time.Duration
	// Alerter is optional; failed credential checks are still logged.
	Alerter *security.AuditAlerter
	Now     func() time.Time
}

// App registers users and issues their token pairs.
type App struct {
	users         store.UserStore
	tokens        *store.AccessTokens
	refreshTokens store.RefreshTokenStore
	refreshTTL    time.Duration
	alerter       *security.AuditAlerter
	now           func() time.Time
}

// Session is a freshly issued token pair.
type Session struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
}

// New validates dependencies and applies defaults.
func New(cfg Config) (*App, error) {
	if cfg.Users == nil {
		return nil, errors.New("user store required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("access token issuer required")
	}
	if cfg.RefreshTokens == nil {
		return nil, errors.New("refresh token store required")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		users:         cfg.Users,
		tokens:        cfg.Tokens,
		refreshTokens: cfg.RefreshTokens,
		refreshTTL:    cfg.RefreshTTL,
		alerter:       cfg.Alerter,
		now:           cfg.Now,
	}, nil
}

// Register creates an account and signs it in.
func (a *App) Register(ctx context.Context, email, password, name string) (Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" {
		return Session{}, ErrEmailAndPasswordRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, ErrInvalidEmail
	}
	if len([]rune(name)) > maxNameLength {
		return Session{}, ErrNameTooLong
	}
	if err := auth.ValidatePassword(password); err != nil {
		return Session{}, err
	}
	exists, err := a.users.HasUserEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		a.observeFailure(ctx, security.EventUserRegister, email)
		return Session{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now().UTC()
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Session{}, ErrEmailAlreadyExists
		}
		return Session{}, fmt.Errorf("save user: %w", err)
	}
	util.LoggerFromContext(ctx).Info("audit", "event", security.EventUserRegister, "outcome", "ok", "user_id", user.ID)
	return a.issue(ctx, user)
}

// Login validates credentials and issues a token pair.
func (a *App) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrEmailAndPasswordRequired
	}
	user, ok, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		a.observeFailure(ctx, security.EventUserLogin, email)
		return Session{}, ErrInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		a.observeFailure(ctx, security.EventUserLogin, email)
		return Session{}, ErrInvalidCredentials
	}
	return a.issue(ctx, user)
}

// Refresh rotates the refresh token and issues a new access token. A
// replayed refresh token revokes its whole family.
func (a *App) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Session{}, ErrRefreshTokenRequired
	}
	userID, next, err := a.refreshTokens.RotateToken(ctx, refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			a.observeFailure(ctx, security.EventUserRefresh, userID)
			return Session{}, ErrInvalidRefreshToken
		}
		return Session{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	user, found, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found || user.Status == domain.StatusDisabled {
		_ = a.refreshTokens.DeleteToken(ctx, next)
		return Session{}, ErrInvalidRefreshToken
	}
	access, err := a.tokens.SignAccessToken(ctx, user.ID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(ctx, next)
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	return Session{User: user, AccessToken: access, RefreshToken: next, ExpiresIn: int64(a.tokens.TTL().Seconds())}, nil
}

// Logout revokes the access token and, when given, the refresh family.
func (a *App) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if _, err := a.UserFromToken(ctx, accessToken); err != nil {
		return err
	}
	if err := a.tokens.RevokeAccessToken(ctx, accessToken); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := a.refreshTokens.DeleteToken(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	return nil
}

// UserFromToken resolves the active user behind an access token.
func (a *App) UserFromToken(ctx context.Context, accessToken string) (domain.User, error) {
	userID, err := a.tokens.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrInvalidAccessToken) || errors.Is(err, store.ErrAccessTokenRevoked) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("verify access token: %w", err)
	}
	user, ok, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || user.Status == domain.StatusDisabled {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

func (a *App) issue(ctx context.Context, user domain.User) (Session, error) {
	access, err := a.tokens.SignAccessToken(ctx, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := a.refreshTokens.NewToken(ctx, user.ID, a.refreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Session{User: user, AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(a.tokens.TTL().Seconds())}, nil
}

func (a *App) observeFailure(ctx context.Context, event, subject string) {
	logger := util.LoggerFromContext(ctx)
	logger.Warn("audit", "event", event, "outcome", security.OutcomeFail)
	res, err := a.alerter.Observe(ctx, event, security.OutcomeFail, subject)
	if err != nil {
		logger.Warn("audit alerter unavailable", "event", event, "err", err)
		return
	}
	if res.Triggered {
		logger.Error("security_alert", "event", event, "count", res.Count, "threshold", res.Threshold)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
