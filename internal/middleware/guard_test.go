package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/session"
)

type stubBackend struct{}

func (stubBackend) SignInWithPassword(_ context.Context, email, _ string) (*model.Session, error) {
	return &model.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         &model.User{ID: "u1", Email: email},
	}, nil
}

func (stubBackend) Refresh(context.Context, string) (*model.Session, error) {
	return nil, identity.ErrInvalidToken
}

func (stubBackend) Revoke(context.Context, string) error { return nil }

func (stubBackend) UserFromAccessToken(context.Context, string) (*model.User, error) {
	return nil, identity.ErrInvalidToken
}

func (stubBackend) UpdatePassword(context.Context, string, string) error { return nil }

type stubProfiles struct{}

func (stubProfiles) ByUserID(_ context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID, Name: "Client", Role: model.RoleClient}, nil
}

func (stubProfiles) TouchLastSeen(context.Context, string, time.Time) error { return nil }

// newStore returns a store of the given state. Loading stores are never
// initialized.
func newStore(t *testing.T, status session.Status) *session.Store {
	t.Helper()
	ctx := context.Background()
	client := identity.NewClient(stubBackend{}, kv.NewMemory())
	if status == session.StatusAuthenticated {
		if _, err := client.SignInWithPassword(ctx, "client@example.com", "pw"); err != nil {
			t.Fatalf("sign in: %v", err)
		}
	}

	store := session.New("c1", client, stubProfiles{})
	t.Cleanup(store.Close)
	if status != session.StatusLoading {
		store.Initialize(ctx)
	}
	if got := store.Snapshot().Status; got != status {
		t.Fatalf("store status = %s, want %s", got, status)
	}
	return store
}

func guarded(store *session.Store, called *bool) http.Handler {
	h := RequireSession(10 * time.Millisecond)(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if ctxkeys.User(r.Context()) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(ctxkeys.WithSession(r.Context(), store)))
	})
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name         string
		status       session.Status
		xhr          bool
		wantStatus   int
		wantLocation string
		wantCalled   bool
	}{
		{"loading shows placeholder", session.StatusLoading, false, http.StatusAccepted, "", false},
		{"unauthenticated redirects with return path", session.StatusUnauthenticated, false, http.StatusSeeOther, "/login?redirect=%2Fprojects%2F42%3Ftab%3Dfiles", false},
		{"unauthenticated xhr gets 401", session.StatusUnauthenticated, true, http.StatusUnauthorized, "", false},
		{"authenticated passes", session.StatusAuthenticated, false, http.StatusNoContent, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, tt.status)
			called := false

			req := httptest.NewRequest(http.MethodGet, "/projects/42?tab=files", nil)
			if tt.xhr {
				req.Header.Set("Accept", "application/json")
			}
			rec := httptest.NewRecorder()
			guarded(store, &called).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.status == session.StatusLoading && rec.Header().Get("Retry-After") != "1" {
				t.Error("loading response must carry Retry-After")
			}
			if tt.xhr {
				var body map[string]any
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["code"] != "unauthenticated" || body["login"] != "/login?redirect=%2Fprojects%2F42%3Ftab%3Dfiles" {
					t.Errorf("unexpected body %v", body)
				}
			}
		})
	}
}

func TestRequireSessionWaitsForInitialLoad(t *testing.T) {
	client := identity.NewClient(stubBackend{}, kv.NewMemory())
	if _, err := client.SignInWithPassword(context.Background(), "client@example.com", "pw"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	store := session.New("c1", client, stubProfiles{})
	t.Cleanup(store.Close)

	go func() {
		time.Sleep(5 * time.Millisecond)
		store.Initialize(context.Background())
	}()

	called := false
	h := RequireSession(time.Second)(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	h(httptest.NewRecorder(), req.WithContext(ctxkeys.WithSession(req.Context(), store)))

	if !called {
		t.Error("guard should wait for the initial load instead of redirecting")
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                        "/dashboard",
		"/projects/42?tab=files":  "/projects/42?tab=files",
		"/knowledge/brand-basics": "/knowledge/brand-basics",
		"/login":                  "/dashboard",
		"/login?redirect=/x":      "/dashboard",
		"https://evil.example":    "/dashboard",
		"//evil.example/path":     "/dashboard",
		"/\\evil.example":         "/dashboard",
		"dashboard":               "/dashboard",
	}
	for in, want := range tests {
		if got := SafeRedirect(in); got != want {
			t.Errorf("SafeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLegacyRedirects(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := LegacyRedirects(next)

	tests := []struct {
		path         string
		wantStatus   int
		wantLocation string
	}{
		{"/de/contact", http.StatusMovedPermanently, "/de/kontakt"},
		{"/de/privacy?ref=footer", http.StatusMovedPermanently, "/de/datenschutz?ref=footer"},
		{"/de/ueber-uns", http.StatusMovedPermanently, "/de/about"},
		{"/de/about", http.StatusOK, ""},
		{"/de/kontakt", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus || rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("got %d %q, want %d %q", rec.Code, rec.Header().Get("Location"), tt.wantStatus, tt.wantLocation)
			}
		})
	}
}

func TestLocale(t *testing.T) {
	var got string
	h := Locale(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ctxkeys.Lang(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/de/kontakt", nil)
	req.Header.Set("Accept-Language", "en-US")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "de" {
		t.Errorf("page language should win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "de" {
		t.Errorf("expected negotiated language, got %q", got)
	}
}
