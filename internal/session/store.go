// Package session holds the authenticated identity of one portal client and
// the profile derived from it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/model"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

type Profiles interface {
	ByUserID(ctx context.Context, userID string) (*model.Profile, error)
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

type State struct {
	Status  Status         `json:"status"`
	User    *model.User    `json:"user,omitempty"`
	Profile *model.Profile `json:"profile,omitempty"`
	Session *model.Session `json:"-"`
}

type Store struct {
	id       string
	auth     *identity.Client
	profiles Profiles

	// Cancelled by Close; every fetch of the store runs under it
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	user    *model.User
	profile *model.Profile
	session *model.Session
	loading bool
	mounted bool
	changed chan struct{}

	initOnce    sync.Once
	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()
	lastUsed    atomic.Int64
}

func New(id string, auth *identity.Client, profiles Profiles) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		id:       id,
		auth:     auth,
		profiles: profiles,
		ctx:      ctx,
		cancel:   cancel,
		loading:  true,
		mounted:  true,
		changed:  make(chan struct{}),
		ready:    make(chan struct{}),
	}
	s.Touch()
	return s
}

func (s *Store) ID() string {
	return s.id
}

// Initialize subscribes to auth state changes and loads the persisted session
// and its profile. Only the first call does anything.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		unsubscribe := s.auth.OnAuthStateChange(s.OnAuthStateChanged)
		s.mu.Lock()
		if !s.mounted {
			s.mu.Unlock()
			unsubscribe()
			s.finishLoading()
			return
		}
		s.unsubscribe = unsubscribe
		s.mu.Unlock()

		s.load(ctx)
	})
}

func (s *Store) load(parent context.Context) {
	defer s.finishLoading()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	session, err := s.auth.GetSession(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		slog.Warn("failed to read persisted session", "error", err, "client_id", s.id)
		return
	}
	if session == nil || session.User == nil {
		return
	}

	if !s.setIdentity(session) {
		return
	}

	profile, err := s.profiles.ByUserID(ctx, session.User.ID)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		slog.Warn("failed to load profile", "error", err, "user_id", session.User.ID)
		return
	}
	s.setProfile(session.User.ID, profile)
}

func (s *Store) finishLoading() {
	s.mu.Lock()
	if s.mounted {
		s.loading = false
	}
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

// OnAuthStateChanged applies an auth event. The identity update happens
// before it returns; the profile fetch and the last-seen update are detached.
func (s *Store) OnAuthStateChanged(event identity.Event, session *model.Session) {
	if event == identity.SignedOut {
		s.clear()
		return
	}
	if session == nil || session.User == nil {
		return
	}
	if !s.setIdentity(session) {
		return
	}

	userID := session.User.ID
	switch event {
	case identity.SignedIn, identity.PasswordRecovery:
		go s.touchLastSeen(userID)
		go s.fetchProfile(userID)
	case identity.UserUpdated:
		go s.fetchProfile(userID)
	}
}

// SignIn returns once the identity is set, so a redirect issued right after
// sees an authenticated store even before the auth event arrives.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	session, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return identity.Classify(err)
	}

	if s.setIdentity(session) {
		go s.fetchProfile(session.User.ID)
	}
	return nil
}

// SignOut clears the identity only when the provider accepted the sign out.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	if err != nil {
		return identity.Classify(err)
	}
	s.clear()
	return nil
}

// SetSession applies tokens from an invite or recovery link.
func (s *Store) SetSession(ctx context.Context, accessToken, refreshToken, linkType string) error {
	session, err := s.auth.SetSession(ctx, accessToken, refreshToken, linkType)
	if err != nil {
		return identity.Classify(err)
	}

	if s.setIdentity(session) {
		go s.fetchProfile(session.User.ID)
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, password string) error {
	err := s.auth.UpdatePassword(ctx, password)
	if err != nil {
		return identity.Classify(err)
	}
	return nil
}

// RefreshProfile re-reads the profile. It returns nil, nil when nobody is signed in.
func (s *Store) RefreshProfile(ctx context.Context) (*model.Profile, error) {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if user == nil {
		return nil, nil
	}

	profile, err := s.profiles.ByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.setProfile(user.ID, profile)
	return profile, nil
}

// Snapshot is the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Status:  StatusUnauthenticated,
		User:    s.user,
		Profile: s.profile,
		Session: s.session,
	}
	switch {
	case s.loading:
		state.Status = StatusLoading
	case s.user != nil:
		state.Status = StatusAuthenticated
	}
	return state
}

// Ready is closed once the initial load has resolved.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Changed is closed the next time the signed in identity changes.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Close unmounts the store. In-flight fetches are cancelled and every later
// state write is dropped.
func (s *Store) Close() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	unsubscribe := s.unsubscribe
	close(s.changed)
	s.mu.Unlock()

	s.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Store) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// setIdentity reports false when the store is no longer mounted.
func (s *Store) setIdentity(session *model.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return false
	}
	switched := s.user == nil || s.user.ID != session.User.ID
	if switched {
		s.profile = nil
		s.notifyChanged()
	}
	s.user = session.User
	s.session = session
	s.loading = false
	return true
}

func (s *Store) setProfile(userID string, profile *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || s.user == nil || s.user.ID != userID {
		return
	}
	s.profile = profile
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return
	}
	if s.user != nil {
		s.notifyChanged()
	}
	s.user = nil
	s.profile = nil
	s.session = nil
	s.loading = false
}

// notifyChanged must be called with mu held.
func (s *Store) notifyChanged() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Store) fetchProfile(userID string) {
	profile, err := s.profiles.ByUserID(s.ctx, userID)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		slog.Warn("failed to load profile", "error", err, "user_id", userID)
		return
	}
	s.setProfile(userID, profile)
}

func (s *Store) touchLastSeen(userID string) {
	err := s.profiles.TouchLastSeen(s.ctx, userID, time.Now())
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("failed to update last seen", "error", err, "user_id", userID)
	}
}
