package identity

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	LinkInvite   = "invite"
	LinkRecovery = "recovery"
	LinkSignup   = "signup"
)

// Fragment is the token set an invite or recovery link carries after "#".
type Fragment struct {
	AccessToken  string
	RefreshToken string
	Type         string
	ExpiresIn    int
}

// ParseFragment extracts the tokens from rawURL's fragment and returns the URL
// without the fragment. Links that carry an error, or no tokens, are
// ErrInvalidLink.
func ParseFragment(rawURL string) (*Fragment, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	values, err := url.ParseQuery(u.Fragment)
	u.Fragment = ""
	u.RawFragment = ""
	stripped := u.String()
	if err != nil {
		return nil, stripped, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	if desc := values.Get("error_description"); desc != "" {
		return nil, stripped, fmt.Errorf("%w: %s", ErrInvalidLink, desc)
	}
	if code := values.Get("error"); code != "" {
		return nil, stripped, fmt.Errorf("%w: %s", ErrInvalidLink, code)
	}

	f := &Fragment{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         values.Get("type"),
	}
	if f.AccessToken == "" || f.RefreshToken == "" {
		return nil, stripped, ErrInvalidLink
	}
	if n, err := strconv.Atoi(values.Get("expires_in")); err == nil {
		f.ExpiresIn = n
	}

	return f, stripped, nil
}

// Encode renders f as a URL fragment (without "#").
func (f *Fragment) Encode() string {
	values := url.Values{}
	values.Set("access_token", f.AccessToken)
	values.Set("refresh_token", f.RefreshToken)
	if f.Type != "" {
		values.Set("type", f.Type)
	}
	if f.ExpiresIn > 0 {
		values.Set("expires_in", strconv.Itoa(f.ExpiresIn))
	}
	return values.Encode()
}

// expiryOf reads the exp claim without verifying the token. The backend has
// already verified it.
func expiryOf(accessToken string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
