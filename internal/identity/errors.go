package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidLink        = errors.New("invalid or expired link")
)

type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindInvalidLink        ErrorKind = "invalid_link"
	KindNetwork            ErrorKind = "network"
	KindUnknown            ErrorKind = "unknown"
)

// AuthError is what sign-in, sign-out and link flows report to the caller.
type AuthError struct {
	Kind ErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Classify wraps err in an *AuthError with the matching kind.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return &AuthError{Kind: KindInvalidCredentials, Err: err}
	case errors.Is(err, ErrInvalidLink), errors.Is(err, ErrInvalidToken):
		return &AuthError{Kind: KindInvalidLink, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return &AuthError{Kind: KindNetwork, Err: err}
	}
	return &AuthError{Kind: KindUnknown, Err: err}
}
