package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 12

var (
	ErrPasswordTooShort    = errors.New("password must be at least 12 characters")
	ErrPasswordNoUpper     = errors.New("password must contain an uppercase letter")
	ErrPasswordNoLower     = errors.New("password must contain a lowercase letter")
	ErrPasswordNoDigit     = errors.New("password must contain a digit")
	ErrPasswordNoSpecial   = errors.New("password must contain a special character")
	ErrPasswordHasSpace    = errors.New("password must not contain whitespace")
	ErrEmptyPasswordToHash = errors.New("password is empty")
)

// HashPassword returns a bcrypt digest of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPasswordToHash
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches a bcrypt digest. Stored
// values that are not bcrypt digests never match.
func CheckPassword(password, stored string) bool {
	if password == "" || !IsHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// IsHash reports whether stored looks like a bcrypt digest.
func IsHash(stored string) bool {
	if _, err := bcrypt.Cost([]byte(stored)); err != nil {
		return false
	}
	return strings.HasPrefix(stored, "$2")
}

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return ErrPasswordTooShort
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return ErrPasswordHasSpace
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	switch {
	case !upper:
		return ErrPasswordNoUpper
	case !lower:
		return ErrPasswordNoLower
	case !digit:
		return ErrPasswordNoDigit
	case !special:
		return ErrPasswordNoSpecial
	}
	return nil
}
