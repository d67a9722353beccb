package model

import "time"

// Session pairs an access credential and a refresh credential with the identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Expired reports whether the access token is past its expiry, with a small skew
// so a token is refreshed before it is rejected mid-request.
func (s *Session) Expired(now time.Time) bool {
	return !now.Add(10 * time.Second).Before(s.ExpiresAt)
}
