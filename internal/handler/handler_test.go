package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/contact"
	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/db/dbtest"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/middleware"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
	"github.com/lumenflow/portal/internal/repository"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/session"
	"github.com/lumenflow/portal/internal/storage"
	"github.com/lumenflow/portal/internal/webhook"
)

const (
	testBrand    = "lumenflow"
	testClient   = "9b2f5c3e-2d8f-4a53-9a57-3f1c1d6f0c11"
	testPassword = "correct-horse-battery"
)

type stubStorage struct {
	err error
}

func (s *stubStorage) Save(context.Context, string, io.Reader, string) error { return nil }
func (s *stubStorage) Delete(context.Context, string) error                  { return nil }

func (s *stubStorage) PresignGet(_ context.Context, path string, _ time.Duration, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://storage.example.com/" + path + "?sig=1", nil
}

type testServer struct {
	t        *testing.T
	db       *sqlx.DB
	broker   *realtime.Broker
	users    repository.UserRepository
	profiles repository.ProfileRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	assets   repository.AssetRepository
	articles repository.ArticleRepository
	auth     *service.AuthService
	kv       kv.Store
	storage  *stubStorage
	store    *session.Store
	mux      *http.ServeMux

	chatURL    string
	contactURL string
}

type option func(*testServer)

func withChat(url string) option    { return func(s *testServer) { s.chatURL = url } }
func withContact(url string) option { return func(s *testServer) { s.contactURL = url } }

func newTestServer(t *testing.T, opts ...option) *testServer {
	t.Helper()
	conn := dbtest.New(t)
	broker := realtime.NewBroker(realtime.DefaultBuffer)
	t.Cleanup(broker.Close)

	s := &testServer{
		t:        t,
		db:       conn,
		broker:   broker,
		users:    repository.NewUserRepository(conn),
		profiles: repository.NewProfileRepository(conn),
		projects: repository.NewProjectRepository(conn, broker),
		tasks:    repository.NewTaskRepository(conn, broker),
		assets:   repository.NewAssetRepository(conn, broker),
		articles: repository.NewArticleRepository(conn, broker),
		kv:       repository.NewKVRepository(conn),
		storage:  &stubStorage{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.auth = service.NewAuthService(s.users, s.profiles, repository.NewTokenRepository(conn), s.projects,
		service.NewEmailService("", "noreply@example.com", "Lumenflow", true),
		"test-secret-test-secret-test-secret", "https://portal.example.com",
		service.AuthTokenExpiry{Access: time.Hour, Refresh: 24 * time.Hour, Invite: time.Hour, Recovery: time.Hour},
	)
	profileService := service.NewProfileService(s.profiles)

	client := identity.NewClient(s.auth, kv.ForClient(s.kv, testClient))
	s.store = session.New(testClient, client, profileService)
	t.Cleanup(s.store.Close)
	s.store.Initialize(context.Background())

	projectService := service.NewProjectService(s.projects, s.tasks, s.assets, testBrand)
	knowledgeService := service.NewKnowledgeService(s.articles)
	legal := fstest.MapFS{
		"legal/en/impressum.md": {Data: []byte("---\ntitle: Imprint\nlastUpdated: 2026-03-01\n---\n\nLumenflow GmbH\n")},
		"legal/de/impressum.md": {Data: []byte("---\ntitle: Impressum\nlastUpdated: 2026-03-01\n---\n\nLumenflow GmbH\n")},
	}

	pages := NewPageHandler(service.NewLegalService(legal, false), service.NewSitemapService("https://portal.example.com"), "https://portal.example.com")
	auth := NewAuthHandler(s.auth)
	dashboard := NewDashboardHandler(projectService, storage.NewResolver(s.storage, time.Hour), broker)
	knowledge := NewKnowledgeHandler(knowledgeService, webhook.NewClient(s.chatURL, time.Second, nil), s.kv, true, broker)
	overlays := NewFlagsHandler(s.kv)
	account := NewAccountHandler(profileService)
	contactForm := NewContactHandler(contact.NewService(webhook.NewClient(s.contactURL, time.Second, nil), "website"))

	guard := middleware.RequireSession(time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", pages.Page)
	mux.HandleFunc("GET /de/kontakt", pages.Page)
	mux.HandleFunc("GET /impressum", pages.Page)
	mux.HandleFunc("GET /de/impressum", pages.Page)
	mux.HandleFunc("POST /contact", contactForm.Submit)
	mux.HandleFunc("GET /consent/cookies", overlays.CookieConsent)
	mux.HandleFunc("PUT /consent/cookies", overlays.SaveCookieConsent)
	mux.HandleFunc("GET /login", auth.LoginPage)
	mux.HandleFunc("POST /login", auth.Login)
	mux.HandleFunc("POST /logout", auth.Logout)
	mux.HandleFunc("GET /auth/verify", auth.VerifyLink)
	mux.HandleFunc("POST /auth/session", auth.Session)
	mux.HandleFunc("GET /dashboard", guard(dashboard.Dashboard))
	mux.HandleFunc("GET /dashboard/events", guard(dashboard.DashboardEvents))
	mux.HandleFunc("GET /projects/{id}", guard(dashboard.Project))
	mux.HandleFunc("GET /projects/{id}/events", guard(dashboard.ProjectEvents))
	mux.HandleFunc("POST /assets/{id}/preview", guard(dashboard.Preview))
	mux.HandleFunc("POST /assets/{id}/download", guard(dashboard.Download))
	mux.HandleFunc("GET /knowledge", guard(knowledge.List))
	mux.HandleFunc("GET /knowledge/{slug}", guard(knowledge.Article))
	mux.HandleFunc("POST /knowledge/{slug}/chat", guard(knowledge.ChatSend))
	mux.HandleFunc("GET /knowledge/{slug}/chat", guard(knowledge.ChatHistory))
	mux.HandleFunc("POST /chat/consent", guard(knowledge.AcceptConsent))
	mux.HandleFunc("GET /onboarding", guard(overlays.Onboarding))
	mux.HandleFunc("POST /onboarding/complete", guard(overlays.CompleteOnboarding))
	mux.HandleFunc("DELETE /onboarding", guard(overlays.ResetOnboarding))
	mux.HandleFunc("GET /account", guard(account.Account))
	mux.HandleFunc("PATCH /account/profile", guard(account.UpdateProfile))
	s.mux = mux
	return s
}

func (s *testServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := ctxkeys.WithClientID(r.Context(), testClient)
	ctx = ctxkeys.WithSession(ctx, s.store)
	ctx = ctxkeys.WithLang(ctx, "en")
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (s *testServer) do(method, target string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) user(email, role string) *model.User {
	s.t.Helper()
	ctx := context.Background()
	hash, err := s.auth.HashPassword(testPassword)
	if err != nil {
		s.t.Fatalf("hash password: %v", err)
	}
	u := &model.User{Email: email, PasswordHash: &hash}
	if err := s.users.Create(ctx, u); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	if err := s.profiles.Create(ctx, &model.Profile{UserID: u.ID, Name: "Client", Role: role}); err != nil {
		s.t.Fatalf("create profile: %v", err)
	}
	return u
}

func (s *testServer) signIn(email string) {
	s.t.Helper()
	if err := s.store.SignIn(context.Background(), email, testPassword); err != nil {
		s.t.Fatalf("sign in: %v", err)
	}
}

func (s *testServer) project(name string, members ...*model.User) *model.Project {
	s.t.Helper()
	ctx := context.Background()
	p := &model.Project{Brand: testBrand, Name: name, Status: model.ProjectStatusActive}
	if err := s.projects.Create(ctx, p); err != nil {
		s.t.Fatalf("create project: %v", err)
	}
	for _, m := range members {
		if err := s.projects.AddMember(ctx, p.ID, m.ID); err != nil {
			s.t.Fatalf("add member: %v", err)
		}
	}
	return p
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.user("client@example.com", model.RoleClient)

	tests := []struct {
		name         string
		body         loginRequest
		wantStatus   int
		wantCode     string
		wantRedirect string
	}{
		{"wrong password", loginRequest{Email: "client@example.com", Password: "nope", Redirect: "/projects/1"}, http.StatusUnauthorized, "invalid_credentials", ""},
		{"missing fields", loginRequest{Email: "client@example.com"}, http.StatusUnauthorized, "invalid_credentials", ""},
		{"return path kept", loginRequest{Email: "client@example.com", Password: testPassword, Redirect: "/projects/1?tab=files"}, http.StatusOK, "", "/projects/1?tab=files"},
		{"foreign redirect dropped", loginRequest{Email: "client@example.com", Password: testPassword, Redirect: "https://evil.example"}, http.StatusOK, "", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			body := decodeBody(t, rec)
			if tt.wantCode != "" {
				if body["code"] != tt.wantCode {
					t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
				}
				form, _ := body["form"].(map[string]any)
				if form["email"] != tt.body.Email {
					t.Errorf("form not echoed: %v", body["form"])
				}
				if strings.Contains(rec.Body.String(), tt.body.Password) && tt.body.Password != "" {
					t.Error("password must not be echoed")
				}
				return
			}
			if body["redirect"] != tt.wantRedirect {
				t.Errorf("redirect = %v, want %s", body["redirect"], tt.wantRedirect)
			}
		})
	}
}

func TestGuardedRoutesAfterSignIn(t *testing.T) {
	s := newTestServer(t)
	client := s.user("client@example.com", model.RoleClient)
	mine := s.project("Website", client)
	other := s.project("Other")

	rec := s.do(http.MethodGet, "/dashboard", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("signed out dashboard = %d, want 401", rec.Code)
	}

	s.signIn("client@example.com")

	rec = s.do(http.MethodGet, "/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d: %s", rec.Code, rec.Body)
	}
	var dashboard model.Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if len(dashboard.Projects) != 1 || dashboard.Projects[0].Project.ID != mine.ID {
		t.Errorf("dashboard shows %d projects, want only %s", len(dashboard.Projects), mine.Name)
	}

	rec = s.do(http.MethodGet, "/projects/"+other.ID, nil)
	if rec.Code != http.StatusNotFound || decodeBody(t, rec)["code"] != "not_found" {
		t.Errorf("foreign project = %d %s, want 404 not_found", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodPost, "/logout", nil)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["redirect"] != "/login" {
		t.Errorf("logout = %d %s", rec.Code, rec.Body)
	}
	if got := s.do(http.MethodGet, "/dashboard", nil).Code; got != http.StatusUnauthorized {
		t.Errorf("dashboard after logout = %d, want 401", got)
	}
}

func TestAssetPreview(t *testing.T) {
	s := newTestServer(t)
	client := s.user("client@example.com", model.RoleClient)
	p := s.project("Website", client)
	asset := &model.Asset{ProjectID: p.ID, Name: "logo.png", StoragePath: "projects/" + p.ID + "/logo.png", MimeType: "image/png"}
	if err := s.assets.Create(context.Background(), asset); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	s.signIn("client@example.com")

	rec := s.do(http.MethodPost, "/assets/"+asset.ID+"/preview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview = %d: %s", rec.Code, rec.Body)
	}
	if url, _ := decodeBody(t, rec)["url"].(string); !strings.HasPrefix(url, "https://storage.example.com/") {
		t.Errorf("unexpected preview url %q", url)
	}

	s.storage.err = errors.New("signing failed")
	rec = s.do(http.MethodPost, "/assets/"+asset.ID+"/download", nil)
	if rec.Code != http.StatusBadGateway || decodeBody(t, rec)["code"] != "preview_unavailable" {
		t.Errorf("failed signing = %d %s, want 502 preview_unavailable", rec.Code, rec.Body)
	}

	rec = s.do(http.MethodPost, "/assets/unknown/preview", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset = %d, want 404", rec.Code)
	}
}

func TestOnboarding(t *testing.T) {
	s := newTestServer(t)
	s.user("client@example.com", model.RoleClient)
	s.signIn("client@example.com")

	steps := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/onboarding", false},
		{http.MethodPost, "/onboarding/complete", true},
		{http.MethodPost, "/onboarding/complete", true},
		{http.MethodGet, "/onboarding", true},
		{http.MethodDelete, "/onboarding", false},
		{http.MethodGet, "/onboarding", false},
	}
	for _, step := range steps {
		rec := s.do(step.method, step.path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s = %d", step.method, step.path, rec.Code)
		}
		if got := decodeBody(t, rec)["completed"]; got != step.want {
			t.Errorf("%s %s completed = %v, want %v", step.method, step.path, got, step.want)
		}
	}
}

func TestCookieConsent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/consent/cookies", nil)
	if body := decodeBody(t, rec); body["consent"] != nil {
		t.Errorf("expected no consent yet, got %v", body["consent"])
	}

	rec = s.do(http.MethodPut, "/consent/cookies", model.ConsentPreferences{Necessary: false})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("declining necessary cookies = %d, want 400", rec.Code)
	}

	rec = s.do(http.MethodPut, "/consent/cookies", model.ConsentPreferences{Necessary: true, Analytics: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("save consent = %d: %s", rec.Code, rec.Body)
	}
	consent, _ := decodeBody(t, s.do(http.MethodGet, "/consent/cookies", nil))["consent"].(map[string]any)
	if consent["version"] != model.CookieConsentVersion {
		t.Errorf("unexpected consent %v", consent)
	}
}

func TestContactSubmit(t *testing.T) {
	status := http.StatusOK
	var received map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = nil
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer hook.Close()

	s := newTestServer(t, withContact(hook.URL))
	valid := contact.Submission{Name: "Ada", Email: "ada@example.com", Message: "Hello", Consent: true, Interests: []string{"web"}}

	rec := s.do(http.MethodPost, "/contact", contact.Submission{Name: "Ada", Email: "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid form = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	fields, _ := body["fields"].(map[string]any)
	if fields["email"] != contact.ReasonInvalid || fields["consent"] != contact.ReasonRequired {
		t.Errorf("unexpected fields %v", fields)
	}
	if form, _ := body["form"].(map[string]any); form["name"] != "Ada" {
		t.Errorf("form not echoed: %v", body["form"])
	}
	if received != nil {
		t.Error("invalid form must not be sent")
	}

	rec = s.do(http.MethodPost, "/contact", valid)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid form = %d: %s", rec.Code, rec.Body)
	}
	if received["email"] != "ada@example.com" || received["source"] != "website" {
		t.Errorf("unexpected payload %v", received)
	}

	status = http.StatusInternalServerError
	rec = s.do(http.MethodPost, "/contact", valid)
	if rec.Code != http.StatusBadGateway || decodeBody(t, rec)["code"] != "contact.server" {
		t.Errorf("server error = %d %s", rec.Code, rec.Body)
	}
}

func TestContactNotConfigured(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/contact", contact.Submission{Name: "Ada", Email: "ada@example.com", Message: "Hi", Consent: true})
	if rec.Code != http.StatusServiceUnavailable || decodeBody(t, rec)["code"] != "contact.not_configured" {
		t.Errorf("got %d %s", rec.Code, rec.Body)
	}
}

func TestPublicPages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/de/kontakt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var desc PageDescriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &desc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.Page != "contact" || desc.Lang != "de" || desc.Canonical != "https://portal.example.com/de/kontakt" {
		t.Errorf("unexpected descriptor %+v", desc)
	}
	hrefs := map[string]string{}
	for _, alt := range desc.Alternates {
		hrefs[alt.Hreflang] = alt.Href
	}
	if hrefs["en"] != "https://portal.example.com/contact" || hrefs["x-default"] != hrefs["en"] {
		t.Errorf("unexpected alternates %v", hrefs)
	}

	rec = s.do(http.MethodGet, "/de/impressum", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &desc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.Legal == nil || desc.Legal.Title != "Impressum" || !strings.Contains(desc.Legal.Content, "Lumenflow GmbH") {
		t.Errorf("unexpected legal page %+v", desc.Legal)
	}
}

func TestKnowledgeChat(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":"Use the dark logo on light backgrounds."}`))
	}))
	defer hook.Close()

	s := newTestServer(t, withChat(hook.URL))
	s.user("client@example.com", model.RoleClient)
	article := &model.Article{Slug: "brand-basics", Title: "Brand basics", Content: "# Logos", IsPublicToClient: true}
	if err := s.articles.Create(context.Background(), article); err != nil {
		t.Fatalf("create article: %v", err)
	}
	s.signIn("client@example.com")

	rec := s.do(http.MethodPost, "/knowledge/brand-basics/chat", chatRequest{Message: "Which logo?"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("chat without consent = %d, want 403", rec.Code)
	}

	if rec := s.do(http.MethodPost, "/chat/consent", nil); rec.Code != http.StatusOK {
		t.Fatalf("consent = %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/knowledge/brand-basics/chat", chatRequest{Message: "Which logo?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec)["content"]; got != "Use the dark logo on light backgrounds." {
		t.Errorf("reply = %v", got)
	}

	history := decodeBody(t, s.do(http.MethodGet, "/knowledge/brand-basics/chat", nil))
	if messages, _ := history["messages"].([]any); len(messages) != 2 {
		t.Errorf("expected question and answer in history, got %v", history["messages"])
	}

	rec = s.do(http.MethodGet, "/knowledge/brand-basics", nil)
	if html, _ := decodeBody(t, rec)["html"].(string); !strings.Contains(html, "<h1") {
		t.Errorf("article not rendered: %s", rec.Body)
	}
}

func TestSessionFromLinkFragment(t *testing.T) {
	s := newTestServer(t)
	s.user("client@example.com", model.RoleClient)
	issued, err := s.auth.SignInWithPassword(context.Background(), "client@example.com", testPassword)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	rec := s.do(http.MethodPost, "/auth/session", sessionRequest{URL: "https://portal.example.com/login#error=access_denied&error_description=expired"})
	if rec.Code != http.StatusUnauthorized || decodeBody(t, rec)["code"] != "invalid_link" {
		t.Fatalf("expired link = %d %s", rec.Code, rec.Body)
	}

	fragment := (&identity.Fragment{AccessToken: issued.AccessToken, RefreshToken: issued.RefreshToken, Type: identity.LinkRecovery}).Encode()
	rec = s.do(http.MethodPost, "/auth/session", sessionRequest{URL: "https://portal.example.com/account?recovery=1#" + fragment})
	if rec.Code != http.StatusOK {
		t.Fatalf("link session = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec)["redirect"]; got != "https://portal.example.com/account?recovery=1" {
		t.Errorf("redirect = %v", got)
	}
	if s.store.Snapshot().Status != session.StatusAuthenticated {
		t.Error("store should be signed in")
	}
}

func TestVerifyInviteLink(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.auth.Invite(ctx, service.Invite{Email: "new@example.com", Name: "New Client"}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	rec := s.do(http.MethodGet, "/auth/verify?token=bogus&type=invite", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?error=invalid_link" {
		t.Errorf("bogus link = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if s.store.Snapshot().User != nil {
		t.Error("bogus link must not sign in")
	}

	var token string
	err := s.db.Get(&token, `SELECT token FROM tokens WHERE type = $1 AND used_at IS NULL`, model.TokenTypeInvite)
	if err != nil {
		t.Fatalf("find invite token: %v", err)
	}

	rec = s.do(http.MethodGet, "/auth/verify?token="+token+"&type=invite", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/onboarding" {
		t.Fatalf("invite link = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	state := s.store.Snapshot()
	if state.Status != session.StatusAuthenticated || state.User.Email != "new@example.com" {
		t.Errorf("invite link should sign in the new client, got %+v", state)
	}

	rec = s.do(http.MethodGet, "/auth/verify?token="+token+"&type=invite", nil)
	if rec.Header().Get("Location") != "/login?error=invalid_link" {
		t.Error("a link works only once")
	}
}

func TestDashboardEvents(t *testing.T) {
	s := newTestServer(t)
	client := s.user("client@example.com", model.RoleClient)
	p := s.project("Website", client)
	s.signIn("client@example.com")

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/dashboard/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := readEvents(resp.Body)
	first := <-events
	if len(first.Projects) != 1 || first.Projects[0].TaskCount != 0 {
		t.Fatalf("unexpected first view %+v", first)
	}

	err = s.tasks.Create(context.Background(), &model.Task{ProjectID: p.ID, Title: "Logo", Status: model.TaskStatusDone})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	select {
	case next := <-events:
		if next.Projects[0].TaskCount != 1 || next.Projects[0].DoneCount != 1 {
			t.Errorf("unexpected live view %+v", next.Projects[0])
		}
	case <-ctx.Done():
		t.Fatal("no live update after task insert")
	}
}

func TestProjectEventsEndWhenMembershipRemoved(t *testing.T) {
	s := newTestServer(t)
	client := s.user("client@example.com", model.RoleClient)
	p := s.project("Website", client)
	s.signIn("client@example.com")

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := openStream(t, ctx, srv.URL+"/projects/"+p.ID+"/events")

	first := <-events
	if first.name != "project" {
		t.Fatalf("first event = %q, want project", first.name)
	}

	if err := s.projects.RemoveMember(context.Background(), p.ID, client.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	var last sseEvent
	for ev := range events {
		last = ev
	}
	if ctx.Err() != nil {
		t.Fatal("stream kept running after the membership was removed")
	}
	if last.name != "not_found" || !strings.Contains(last.data, `"code":"not_found"`) {
		t.Errorf("last event = %+v, want not_found", last)
	}
}

func TestStreamPingsKeepSessionInUse(t *testing.T) {
	interval := pingInterval
	pingInterval = 10 * time.Millisecond
	t.Cleanup(func() { pingInterval = interval })

	s := newTestServer(t)
	client := s.user("client@example.com", model.RoleClient)
	s.project("Website", client)
	s.signIn("client@example.com")

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events := openStream(t, ctx, srv.URL+"/dashboard/events")
	<-events

	before := s.store.LastUsed()
	deadline := time.Now().Add(time.Second)
	for !s.store.LastUsed().After(before) {
		if time.Now().After(deadline) {
			t.Fatal("pings never marked the session as used")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type sseEvent struct {
	name string
	data string
}

// openStream opens an SSE endpoint and yields its events until the body ends.
func openStream(t *testing.T, ctx context.Context, url string) <-chan sseEvent {
	t.Helper()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	out := make(chan sseEvent, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		name := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				out <- sseEvent{name: name, data: strings.TrimPrefix(line, "data: ")}
			}
		}
	}()
	return out
}

// readEvents decodes the dashboard events of an SSE body.
func readEvents(body io.Reader) <-chan model.Dashboard {
	out := make(chan model.Dashboard, 4)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		event := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: ") && event == "dashboard":
				var d model.Dashboard
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &d) == nil {
					out <- d
				}
			}
		}
	}()
	return out
}
