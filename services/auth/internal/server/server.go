package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/ratelimit"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/security"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/auth"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/auth/internal/app"
)

const maxJSONBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
	// Limiters are optional; nil disables limiting for that route.
	RegisterLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter    *ratelimit.FixedWindowLimiter
	RefreshLimiter  *ratelimit.FixedWindowLimiter
	Alerter         *security.AuditAlerter
}

// Server exposes HTTP endpoints for the auth service.
type Server struct {
	app     *app.App
	mux     *http.ServeMux
	origins []string
	trusted *util.TrustedProxies
	alerter *security.AuditAlerter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		mux:     http.NewServeMux(),
		origins: cfg.AllowedOrigins,
		trusted: cfg.TrustedProxies,
		alerter: cfg.Alerter,
	}
	s.routes(cfg)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("auth", s.trusted, util.WithSecurityHeaders(util.WithCORS(s.origins, s.mux))))
}

func (s *Server) routes(cfg Config) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("POST /api/users/register", s.limited(cfg.RegisterLimiter, security.EventUserRegister, s.handleRegister))
	s.mux.Handle("POST /api/users/login", s.limited(cfg.LoginLimiter, security.EventUserLogin, s.handleLogin))
	s.mux.Handle("POST /api/users/refresh", s.limited(cfg.RefreshLimiter, security.EventUserRefresh, s.handleRefresh))
	s.mux.HandleFunc("POST /api/users/logout", s.handleLogout)
	s.mux.Handle("GET /api/users/profile", s.authenticated(s.handleProfile))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return util.WithNoStore([]string{"Authorization"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	}))
}

func (s *Server) limited(limiter *ratelimit.FixedWindowLimiter, event string, next http.HandlerFunc) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := util.ClientIP(r, s.trusted)
		decision := limiter.Allow(r.Context(), event+":"+ip)
		if !decision.Allowed {
			logger := util.LoggerFromContext(r.Context())
			logger.Warn("audit", "event", event, "outcome", security.OutcomeRateLimited, "client_ip", ip)
			if res, err := s.alerter.Observe(r.Context(), event, security.OutcomeRateLimited, ip); err == nil && res.Triggered {
				logger.Error("security_alert", "event", event, "client_ip", ip, "count", res.Count)
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

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.app.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.app.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req refreshRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if err := s.app.Logout(r.Context(), token, req.RefreshToken); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrInvalidEmail),
		errors.Is(err, app.ErrNameTooLong),
		errors.Is(err, app.ErrRefreshTokenRequired),
		isPolicyError(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidRefreshToken),
		errors.Is(err, app.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func isPolicyError(err error) bool {
	for _, target := range []error{
		auth.ErrPasswordTooShort,
		auth.ErrPasswordNoUpper,
		auth.ErrPasswordNoLower,
		auth.ErrPasswordNoDigit,
		auth.ErrPasswordNoSpecial,
		auth.ErrPasswordHasSpace,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "requestId": util.RequestIDFromContext(r.Context())})
}
