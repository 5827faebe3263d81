package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/security"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/auth"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/storage"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

// Config holds runtime dependencies for the study application.
type Config struct {
	Store store.Store
	// Objects is optional; without it image uploads are rejected and img
	// values are returned as stored.
	Objects       storage.ObjectStore
	Alerter       *security.AuditAlerter
	PresignExpiry time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// App implements the study, habit, focus, emoji and point use cases.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	alerter       *security.AuditAlerter
	presignExpiry time.Duration
	now           func() time.Time
	validate      *validator.Validate
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &App{
		store:         cfg.Store,
		objects:       cfg.Objects,
		alerter:       cfg.Alerter,
		presignExpiry: expiry,
		now:           now,
		validate:      validator.New(),
	}, nil
}

// ParseID parses a positive numeric path id.
func ParseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ready reports whether the backing store answers. Stores without a
// connection to check are always ready.
func (a *App) Ready(ctx context.Context) error {
	p, ok := a.store.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// AuthenticateStudy loads a study and verifies its password.
func (a *App) AuthenticateStudy(ctx context.Context, studyID int64, password string) (domain.Study, error) {
	study, ok, err := a.store.GetStudy(ctx, studyID)
	if err != nil {
		return domain.Study{}, fmt.Errorf("load study: %w", err)
	}
	if !ok {
		return domain.Study{}, ErrStudyNotFound
	}
	if study.PasswordHash == "" || password == "" {
		a.observePasswordFailure(ctx, studyID)
		return domain.Study{}, ErrPasswordRequired
	}
	if !auth.CheckPassword(password, study.PasswordHash) {
		a.observePasswordFailure(ctx, studyID)
		return domain.Study{}, ErrPasswordMismatch
	}
	return study, nil
}

func (a *App) observePasswordFailure(ctx context.Context, studyID int64) {
	logger := util.LoggerFromContext(ctx)
	logger.Warn("audit", "event", security.EventStudyPassword, "outcome", security.OutcomeFail, "study_id", studyID)
	res, err := a.alerter.Observe(ctx, security.EventStudyPassword, security.OutcomeFail, "study:"+strconv.FormatInt(studyID, 10))
	if err != nil {
		logger.Error("audit alert counter failed", "err", err)
		return
	}
	if res.Triggered {
		logger.Error("security_alert",
			slog.String("event", security.EventStudyPassword),
			slog.Int64("study_id", studyID),
			slog.Int64("count", res.Count),
			slog.Duration("window", res.Window),
		)
	}
}
