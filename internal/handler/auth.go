package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/middleware"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/session"
	"github.com/lumenflow/portal/internal/ui"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginPage reports the login state. Signed in clients are sent on to the
// redirect target right away.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	target := middleware.SafeRedirect(r.URL.Query().Get("redirect"))

	store := ctxkeys.Session(r.Context())
	state := store.Snapshot()
	if state.Status == session.StatusAuthenticated {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	body := map[string]string{
		"status":   string(state.Status),
		"redirect": target,
	}
	if code := r.URL.Query().Get("error"); code == string(identity.KindInvalidLink) {
		body["error"] = code
		body["message"] = message(r, "auth.invalid_link")
	}
	ui.JSON(w, http.StatusOK, body)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	form := map[string]string{"email": req.Email, "redirect": req.Redirect}

	if req.Email == "" || req.Password == "" {
		authFailed(w, r, identity.ErrInvalidCredentials, form)
		return
	}

	err := ctxkeys.Session(r.Context()).SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		authFailed(w, r, err, form)
		return
	}

	ui.JSON(w, http.StatusOK, map[string]string{"redirect": middleware.SafeRedirect(req.Redirect)})
}

// Logout always ends at the login page. A provider failure is only logged;
// the local session stays until the provider accepts the sign out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := ctxkeys.Session(r.Context()).SignOut(r.Context())
	if err != nil {
		slog.Warn("sign out failed", "error", err, "client_id", ctxkeys.ClientID(r.Context()))
	}
	ui.JSON(w, http.StatusOK, map[string]string{"redirect": "/login"})
}

var linkTargets = map[string]string{
	identity.LinkInvite:   "/onboarding",
	identity.LinkRecovery: "/account?recovery=1",
}

// VerifyLink is the target of invite and recovery emails. The link tokens
// are applied to the browser's session directly.
func (h *AuthHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	linkType := r.URL.Query().Get("type")

	fragment, err := h.authService.VerifyLink(ctx, r.URL.Query().Get("token"), linkType)
	if err == nil {
		err = ctxkeys.Session(ctx).SetSession(ctx, fragment.AccessToken, fragment.RefreshToken, fragment.Type)
	}
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidLink) {
			slog.Error("link verification failed", "error", err, "type", linkType)
		}
		http.Redirect(w, r, "/login?error="+string(identity.KindInvalidLink), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, linkTargets[linkType], http.StatusSeeOther)
}

type sessionRequest struct {
	URL string `json:"url"`
}

// Session applies the tokens of a link URL that carries them in its
// fragment and answers with the URL the browser should show instead.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "")
		return
	}

	fragment, stripped, err := identity.ParseFragment(req.URL)
	if err == nil {
		err = ctxkeys.Session(r.Context()).SetSession(r.Context(), fragment.AccessToken, fragment.RefreshToken, fragment.Type)
	}
	if err != nil {
		slog.Info("link session rejected", "error", err)
		ui.RenderError(w, http.StatusUnauthorized, ui.ErrorBody{
			Code:    string(identity.KindInvalidLink),
			Message: message(r, "auth.invalid_link"),
		})
		return
	}

	ui.JSON(w, http.StatusOK, map[string]string{"redirect": stripped})
}

type recoverRequest struct {
	Email string `json:"email"`
}

// Recover sends a recovery link. The answer is the same whether or not the
// email belongs to an account.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "")
		return
	}

	err := h.authService.SendRecovery(r.Context(), req.Email)
	if errors.Is(err, service.ErrInvalidEmail) {
		ui.RenderError(w, http.StatusBadRequest, ui.ErrorBody{
			Code:    "invalid_email",
			Message: err.Error(),
			Fields:  map[string]string{"email": err.Error()},
			Form:    req,
		})
		return
	}
	if err != nil {
		// Don't reveal delivery problems
		slog.Error("recovery failed", "error", err)
	}
	ui.JSON(w, http.StatusOK, map[string]string{"message": message(r, "recovery.sent")})
}
