package auth

import (
	"errors"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("1234")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "1234" {
		t.Fatalf("expected opaque digest, got %q", hash)
	}
	if !IsHash(hash) {
		t.Fatalf("expected bcrypt digest, got %q", hash)
	}
	if !CheckPassword("1234", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("4321", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("", hash) {
		t.Fatalf("expected empty password to fail")
	}
}

func TestCheckPasswordRejectsPlaintextDigest(t *testing.T) {
	if CheckPassword("1234", "1234") {
		t.Fatalf("plaintext stored value must never verify")
	}
	if CheckPassword("1234", "") {
		t.Fatalf("empty stored value must never verify")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPasswordToHash) {
		t.Fatalf("expected ErrEmptyPasswordToHash, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     error
	}{
		{name: "valid", password: "Str0ng#Password!", want: nil},
		{name: "too short", password: "short1!A", want: ErrPasswordTooShort},
		{name: "no upper", password: "alllowercase123!", want: ErrPasswordNoUpper},
		{name: "no lower", password: "ALLUPPERCASE123!", want: ErrPasswordNoLower},
		{name: "no digit", password: "NoDigitsHere!!!", want: ErrPasswordNoDigit},
		{name: "no special", password: "NoSpecials1234", want: ErrPasswordNoSpecial},
		{name: "whitespace", password: "Has Space 123!x", want: ErrPasswordHasSpace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
			}
		})
	}
}
