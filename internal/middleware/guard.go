package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/session"
	"github.com/lumenflow/portal/internal/ui"
)

const DefaultAfterLogin = "/dashboard"

// RequireSession only lets authenticated clients through. While the initial
// session load is unresolved after wait the client gets a loading placeholder,
// never a redirect to the login.
func RequireSession(wait time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			store := ctxkeys.Session(r.Context())
			if store == nil {
				unauthenticated(w, r)
				return
			}

			timer := time.NewTimer(wait)
			select {
			case <-store.Ready():
			case <-timer.C:
			case <-r.Context().Done():
			}
			timer.Stop()

			state := store.Snapshot()
			switch state.Status {
			case session.StatusLoading:
				w.Header().Set("Retry-After", "1")
				ui.JSON(w, http.StatusAccepted, map[string]string{"status": string(session.StatusLoading)})
			case session.StatusUnauthenticated:
				unauthenticated(w, r)
			default:
				ctx := ctxkeys.WithUser(r.Context(), state.User)
				ctx = ctxkeys.WithProfile(ctx, state.Profile)
				next(w, r.WithContext(ctx))
			}
		}
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	login := LoginURL(r.URL.RequestURI())

	if wantsJSON(r) {
		ui.RenderError(w, http.StatusUnauthorized, ui.ErrorBody{
			Code:    "unauthenticated",
			Message: locale.Message(ctxkeys.Lang(r.Context()), "auth.unknown"),
			Login:   login,
		})
		return
	}
	http.Redirect(w, r, login, http.StatusSeeOther)
}

// LoginURL returns the login page that sends the user back to returnTo.
func LoginURL(returnTo string) string {
	return "/login?redirect=" + url.QueryEscape(returnTo)
}

// SafeRedirect returns target when it is a local absolute path other than
// the login page, else DefaultAfterLogin.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return DefaultAfterLogin
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return DefaultAfterLogin
	}
	if u.Path == "/login" || strings.HasPrefix(u.Path, "/login/") {
		return DefaultAfterLogin
	}
	return target
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") || strings.Contains(accept, "text/event-stream")
}
