package middleware

import (
	"net/http"

	"github.com/lumenflow/portal/internal/config"
	"github.com/lumenflow/portal/internal/ctxkeys"
)

// Config puts the sanitized configuration in the request context. Cookie
// flags, the CSRF origin check and the security headers read it from there.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	public := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithConfig(r.Context(), public)))
		})
	}
}
