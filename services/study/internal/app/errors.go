package app

import "errors"

// Kind classifies failures for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	// Conflicts lists YYYY-MM-DD dates that already hold the requested title.
	Conflicts []string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrStudyNotFound    = &Error{Kind: KindNotFound, Message: "study not found"}
	ErrHabitNotFound    = &Error{Kind: KindNotFound, Message: "habit not found"}
	ErrEmojiNotFound    = &Error{Kind: KindNotFound, Message: "emoji not found"}
	ErrPasswordRequired = &Error{Kind: KindUnauthorized, Message: "password required"}
	ErrPasswordMismatch = &Error{Kind: KindUnauthorized, Message: "password does not match"}
	ErrNotToday         = &Error{Kind: KindBadRequest, Message: "only today's record may be toggled"}
	ErrTitleRequired    = &Error{Kind: KindBadRequest, Message: "habit title required"}
	ErrInvalidDate      = &Error{Kind: KindBadRequest, Message: "date must be YYYY-MM-DD or RFC 3339"}
	ErrDuplicateTitle   = &Error{Kind: KindConflict, Message: "habit already exists today"}
	ErrPasswordConfirm  = &Error{Kind: KindBadRequest, Message: "password confirmation does not match"}
	ErrImageUnavailable = &Error{Kind: KindBadRequest, Message: "image storage not configured"}
	ErrEmojiCount       = &Error{Kind: KindBadRequest, Message: "count must be at least 1"}
)

func badRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func titleConflict(dates []string) error {
	return &Error{Kind: KindConflict, Message: "habit title already in use", Conflicts: dates}
}

// KindOf returns the classification of err, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
