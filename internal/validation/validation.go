package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var (
	ErrRequired        = errors.New("value is required")
	ErrTooLong         = errors.New("value is too long")
	ErrInvalidEmail    = errors.New("invalid email address format")
	ErrPasswordShort   = errors.New("password must be at least 12 characters")
	ErrPasswordLong    = errors.New("password must not exceed 72 bytes")
	ErrPasswordCommon  = errors.New("password is too common, please choose a stronger one")
	ErrPasswordIsEmail = errors.New("password must not contain your email address")
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
	minPassword    = 12
	maxPassword    = 72 // bcrypt truncates after 72 bytes
)

// ValidateEmail accepts a bare RFC 5322 address. Display-name forms like
// "Jane <jane@example.com>" are rejected since the value is stored as typed.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrRequired
	}
	if len(email) > maxEmailLength {
		return ErrTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateName checks a person's name. Length counts characters, not bytes.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrRequired
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return ErrTooLong
	}
	return nil
}

var commonPatterns = []string{
	"password", "passwort", "123456", "qwerty", "qwertz", "admin", "letmein",
	"welcome", "willkommen", "monkey", "dragon", "master", "sunshine", "lumenflow",
}

// ValidatePassword follows the NIST guidance: a minimum length and a block
// list instead of composition rules. The optional email is also blocked.
func ValidatePassword(password string, email ...string) error {
	if utf8.RuneCountInString(password) < minPassword {
		return ErrPasswordShort
	}
	if len(password) > maxPassword {
		return ErrPasswordLong
	}

	lower := strings.ToLower(password)
	for _, pattern := range commonPatterns {
		if strings.Contains(lower, pattern) {
			return ErrPasswordCommon
		}
	}
	for _, e := range email {
		local, _, _ := strings.Cut(strings.ToLower(e), "@")
		if len(local) >= 4 && strings.Contains(lower, local) {
			return ErrPasswordIsEmail
		}
	}
	return nil
}
