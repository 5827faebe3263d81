package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/ratelimit"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/security"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
)

const (
	// PasswordHeader carries the study password on protected routes.
	PasswordHeader = "X-Study-Password"
	maxJSONBytes   = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
	// PasswordLimiter and WriteLimiter are optional per-IP limiters.
	PasswordLimiter *ratelimit.FixedWindowLimiter
	WriteLimiter    *ratelimit.FixedWindowLimiter
	Alerter         *security.AuditAlerter
	MaxImageBytes   int64
}

// Server exposes HTTP endpoints for the study service.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	origins         []string
	trusted         *util.TrustedProxies
	passwordLimiter *ratelimit.FixedWindowLimiter
	writeLimiter    *ratelimit.FixedWindowLimiter
	alerter         *security.AuditAlerter
	maxImageBytes   int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = 5 << 20
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		origins:         cfg.AllowedOrigins,
		trusted:         cfg.TrustedProxies,
		passwordLimiter: cfg.PasswordLimiter,
		writeLimiter:    cfg.WriteLimiter,
		alerter:         cfg.Alerter,
		maxImageBytes:   maxImage,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("study", s.trusted, util.WithSecurityHeaders(util.WithCORS(s.origins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)

	// studies
	s.mux.HandleFunc("GET /api/studies", s.handleListStudies)
	s.mux.HandleFunc("GET /api/studies/manage", s.handleManageStudies)
	s.mux.Handle("POST /api/studies", s.limited(s.writeLimiter, "study.create", s.handleCreateStudy))
	s.mux.HandleFunc("GET /api/studies/{studyId}", s.handleStudyDetail)
	s.mux.Handle("PATCH /api/studies/{studyId}", s.limited(s.passwordLimiter, "study.password", s.handleUpdateStudy))
	s.mux.Handle("DELETE /api/studies/{studyId}", s.limited(s.passwordLimiter, "study.password", s.handleDeleteStudy))
	s.mux.Handle("PUT /api/studies/{studyId}/image", s.limited(s.passwordLimiter, "study.password", s.handleUploadImage))
	s.mux.Handle("POST /api/studies/{studyId}/emojis/increment", s.limited(s.writeLimiter, "study.emoji", s.handleEmoji(true)))
	s.mux.Handle("POST /api/studies/{studyId}/emojis/decrement", s.limited(s.writeLimiter, "study.emoji", s.handleEmoji(false)))
	s.mux.HandleFunc("GET /api/studies/{studyId}/points", s.handlePointsSum)
	s.mux.Handle("POST /api/studies/{studyId}/points", s.limited(s.passwordLimiter, "study.password", s.handleAddPoint))

	// focus
	s.mux.HandleFunc("GET /api/focus/{studyId}", s.handleListFocus)
	s.mux.Handle("PATCH /api/focus/{studyId}", s.limited(s.writeLimiter, "focus", s.handleUpdateFocus))

	// habits
	s.mux.Handle("GET /api/habits/today/{studyId}", s.habit(s.handleListToday))
	s.mux.Handle("POST /api/habits/today/{studyId}/bulk", s.habit(s.handleCreateBulk))
	s.mux.Handle("POST /api/habits/today/{studyId}", s.habit(s.handleAddSingle))
	s.mux.Handle("PATCH /api/habits/{habitId}/toggle", s.habit(s.handleToggle))
	s.mux.Handle("GET /api/habits/week/{studyId}", s.habit(s.handleWeek))
	s.mux.Handle("PATCH /api/habits/today/{studyId}/{habitId}", s.habit(s.handleRename))
	s.mux.Handle("DELETE /api/habits/today/{studyId}/{habitId}", s.habit(s.handleDelete))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Ready(ctx); err != nil {
		util.LoggerFromContext(r.Context()).Warn("readiness check failed", "err", err)
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// habit wraps password-gated habit routes: uncacheable, varied on the
// password header and rate limited per client.
func (s *Server) habit(next http.HandlerFunc) http.Handler {
	return util.WithNoStore([]string{PasswordHeader}, s.limited(s.passwordLimiter, "study.password", next))
}

func (s *Server) limited(limiter *ratelimit.FixedWindowLimiter, scope string, next http.HandlerFunc) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := util.ClientIP(r, s.trusted)
		decision := limiter.Allow(r.Context(), scope+":"+ip)
		if !decision.Allowed {
			logger := util.LoggerFromContext(r.Context())
			logger.Warn("audit", "event", scope, "outcome", security.OutcomeRateLimited, "client_ip", ip)
			if res, err := s.alerter.Observe(r.Context(), scope, security.OutcomeRateLimited, ip); err == nil && res.Triggered {
				logger.Error("security_alert", "event", scope, "client_ip", ip, "count", res.Count)
			}
			secs := int(decision.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, r, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	})
}

// studyPassword prefers the password header over a body field.
func studyPassword(r *http.Request, bodyPassword string) string {
	if v := r.Header.Get(PasswordHeader); v != "" {
		return v
	}
	return bodyPassword
}

type passwordBody struct {
	Password string `json:"password"`
}

// decodeJSON reads a JSON body into dst. An empty body is an error unless
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return &app.Error{Kind: app.KindBadRequest, Message: "request body required"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &app.Error{Kind: app.KindBadRequest, Message: "request body too large"}
		}
		return &app.Error{Kind: app.KindBadRequest, Message: "invalid JSON body"}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return app.ParseID(r.PathValue(name), name)
}

type errorResponse struct {
	Error     string   `json:"error"`
	Conflicts []string `json:"conflicts,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

func statusForKind(k app.Kind) int {
	switch k {
	case app.KindBadRequest:
		return http.StatusBadRequest
	case app.KindUnauthorized:
		return http.StatusUnauthorized
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError maps classified errors to their status. Anything else is
// logged and reported as an internal error.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.Error
	if errors.As(err, &appErr) && appErr.Kind != app.KindInternal {
		writeJSON(w, statusForKind(appErr.Kind), errorResponse{
			Error:     appErr.Message,
			Conflicts: appErr.Conflicts,
			RequestID: util.RequestIDFromContext(r.Context()),
		})
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: util.RequestIDFromContext(r.Context())})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &app.Error{Kind: app.KindBadRequest, Message: name + " must be a number"}
	}
	return n, nil
}
