// Package identity is the per-client view of the identity provider: it keeps
// the client's session in durable storage, renews it when the access token
// expires and notifies listeners about auth state changes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/model"
)

type Event string

const (
	SignedIn         Event = "SIGNED_IN"
	SignedOut        Event = "SIGNED_OUT"
	TokenRefreshed   Event = "TOKEN_REFRESHED"
	UserUpdated      Event = "USER_UPDATED"
	PasswordRecovery Event = "PASSWORD_RECOVERY"
)

const sessionKey = "auth-token"

// Backend is the identity provider.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	Revoke(ctx context.Context, refreshToken string) error
	UserFromAccessToken(ctx context.Context, accessToken string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, password string) error
}

// Listener receives auth state changes. Listeners run on the client's
// dispatcher goroutine, one event at a time and in the order the changes
// happened. An event superseded by a later sign in or sign out is dropped.
// A listener must not call back into the Client synchronously.
type Listener func(event Event, session *model.Session)

type delivery struct {
	event     Event
	session   *model.Session
	epoch     uint64
	listeners []Listener
}

type Client struct {
	backend Backend
	store   kv.Store
	now     func() time.Time

	mu          sync.Mutex
	listeners   map[int]Listener
	nextID      int
	queue       []delivery
	dispatching bool

	// deliverMu orders epoch changes against listener calls.
	deliverMu sync.Mutex
	epoch     uint64
}

// NewClient returns the identity client of one browser. store must be scoped
// to that client.
func NewClient(backend Backend, store kv.Store) *Client {
	return &Client{
		backend:   backend,
		store:     store,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// OnAuthStateChange registers fn and returns its unsubscribe function.
func (c *Client) OnAuthStateChange(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// switches reports whether event replaces the signed in identity.
func switches(event Event) bool {
	return event == SignedIn || event == SignedOut || event == PasswordRecovery
}

func (c *Client) emit(event Event, session *model.Session) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if switches(event) {
		c.epoch++
	}
	epoch := c.epoch

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.listeners) == 0 {
		return
	}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.queue = append(c.queue, delivery{event: event, session: session, epoch: epoch, listeners: listeners})
	if !c.dispatching {
		c.dispatching = true
		go c.dispatch()
	}
}

// dispatch drains the queue in order and exits when it is empty.
func (c *Client) dispatch() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.dispatching = false
			c.queue = nil
			c.mu.Unlock()
			return
		}
		d := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.deliverMu.Lock()
		if d.epoch == c.epoch {
			for _, l := range d.listeners {
				l(d.event, d.session)
			}
		} else {
			slog.Debug("dropped superseded auth event", "event", d.event)
		}
		c.deliverMu.Unlock()
	}
}

// GetSession returns the persisted session, renewing it when the access token
// has expired. A missing or unrenewable session is nil without an error.
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	var session model.Session
	err := kv.GetJSON(ctx, c.store, sessionKey, &session)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	if !session.Expired(c.now()) {
		return &session, nil
	}

	renewed, err := c.backend.Refresh(ctx, session.RefreshToken)
	if errors.Is(err, ErrInvalidToken) {
		slog.Info("persisted session could not be renewed", "user_id", userID(&session))
		c.forget(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	err = c.persist(ctx, renewed)
	if err != nil {
		return nil, err
	}
	c.emit(TokenRefreshed, renewed)
	return renewed, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	session, err := c.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	err = c.persist(ctx, session)
	if err != nil {
		return nil, err
	}
	c.emit(SignedIn, session)
	return session, nil
}

// SignOut revokes the refresh token. On failure the local session is kept.
func (c *Client) SignOut(ctx context.Context) error {
	current, err := c.GetSession(ctx)
	if err != nil {
		return err
	}

	if current != nil {
		err = c.backend.Revoke(ctx, current.RefreshToken)
		if err != nil && !errors.Is(err, ErrInvalidToken) {
			return err
		}
	}

	c.forget(ctx)
	c.emit(SignedOut, nil)
	return nil
}

// SetSession adopts tokens delivered out of band, e.g. in an invite link.
// An expired or unknown access token is exchanged with the refresh token.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken, linkType string) (*model.Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrInvalidLink
	}

	var session *model.Session
	user, err := c.backend.UserFromAccessToken(ctx, accessToken)
	switch {
	case err == nil:
		session = &model.Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			ExpiresAt:    c.now().Add(time.Minute),
			User:         user,
		}
		if exp, ok := expiryOf(accessToken); ok {
			session.ExpiresAt = exp
		}
	case errors.Is(err, ErrInvalidToken):
		session, err = c.backend.Refresh(ctx, refreshToken)
		if errors.Is(err, ErrInvalidToken) {
			return nil, ErrInvalidLink
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	err = c.persist(ctx, session)
	if err != nil {
		return nil, err
	}

	event := SignedIn
	if linkType == LinkRecovery {
		event = PasswordRecovery
	}
	c.emit(event, session)
	return session, nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	session, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNoSession
	}

	err = c.backend.UpdatePassword(ctx, session.User.ID, password)
	if err != nil {
		return err
	}
	c.emit(UserUpdated, session)
	return nil
}

func (c *Client) persist(ctx context.Context, session *model.Session) error {
	err := kv.SetJSON(ctx, c.store, sessionKey, session)
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (c *Client) forget(ctx context.Context) {
	err := c.store.Remove(ctx, sessionKey)
	if err != nil {
		slog.Warn("failed to remove persisted session", "error", err)
	}
}

func userID(s *model.Session) string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
