package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	// ErrUserDisabled is returned when an account is disabled.
	// Handlers should not expose it to clients.
	ErrUserDisabled = errors.New("user disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrInvalidEmail             = errors.New("invalid email address")
	ErrNameTooLong              = errors.New("name must be at most 50 characters")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	ErrUnauthorized = errors.New("unauthorized")
)
