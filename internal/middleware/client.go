package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/session"
)

const ClientCookieName = "portal_client"

// Client identifies the browser by its portal_client cookie, issuing one on
// first contact, and mounts that browser's session store in the context.
func Client(registry *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					clientID = cookie.Value
				}
			}

			if clientID == "" {
				clientID = uuid.New().String()
				cfg := ctxkeys.Config(r.Context())
				isProduction := cfg != nil && cfg.IsProduction()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					HttpOnly: true,
					Secure:   isProduction,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   86400 * 365,
				})
			}

			store := registry.Get(clientID)

			ctx := ctxkeys.WithClientID(r.Context(), clientID)
			ctx = ctxkeys.WithSession(ctx, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
