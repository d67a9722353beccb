// Package flags holds the one-time overlay switches of a client: the
// onboarding tour, the cookie banner and the AI chat disclaimer.
package flags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/model"
)

const (
	keyOnboarding    = "onboarding_completed"
	keyCookieConsent = "cookie_consent"
	keyChatConsent   = "chat_consent"
)

var ErrInvalidConsent = errors.New("necessary cookies cannot be declined")

type Flags struct {
	store kv.Store
	now   func() time.Time
}

// New returns the flags of one client. store must already be scoped to it.
func New(store kv.Store) *Flags {
	return &Flags{store: store, now: time.Now}
}

func (f *Flags) OnboardingCompleted(ctx context.Context) (bool, error) {
	return f.boolean(ctx, keyOnboarding)
}

func (f *Flags) CompleteOnboarding(ctx context.Context) error {
	return f.store.Set(ctx, keyOnboarding, "true")
}

func (f *Flags) ResetOnboarding(ctx context.Context) error {
	return f.store.Remove(ctx, keyOnboarding)
}

func (f *Flags) ChatConsent(ctx context.Context) (bool, error) {
	return f.boolean(ctx, keyChatConsent)
}

func (f *Flags) AcceptChatConsent(ctx context.Context) error {
	return f.store.Set(ctx, keyChatConsent, "true")
}

// CookieConsent returns nil when the banner was never answered.
func (f *Flags) CookieConsent(ctx context.Context) (*model.CookieConsent, error) {
	var consent model.CookieConsent
	err := kv.GetJSON(ctx, f.store, keyCookieConsent, &consent)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

// SaveCookieConsent records the choice with the current consent version.
func (f *Flags) SaveCookieConsent(ctx context.Context, prefs model.ConsentPreferences) (*model.CookieConsent, error) {
	if !prefs.Necessary {
		return nil, ErrInvalidConsent
	}

	consent := &model.CookieConsent{
		Preferences: prefs,
		Timestamp:   f.now().UTC(),
		Version:     model.CookieConsentVersion,
	}
	err := kv.SetJSON(ctx, f.store, keyCookieConsent, consent)
	if err != nil {
		return nil, fmt.Errorf("failed to save cookie consent: %w", err)
	}
	return consent, nil
}

func (f *Flags) boolean(ctx context.Context, key string) (bool, error) {
	v, err := f.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}
