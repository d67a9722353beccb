package middleware

import (
	"net/http"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/locale"
)

// Locale stores the request language in the context. Public pages carry
// their language in the path; everything else is negotiated.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := locale.FromRequest(r)
		if _, pageLang, ok := locale.Resolve(r.URL.Path); ok {
			lang = pageLang
		}
		ctx := ctxkeys.WithLang(r.Context(), lang)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LegacyRedirects answers retired German slugs with a permanent redirect.
func LegacyRedirects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if target, ok := locale.Redirect(r.URL.Path); ok {
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
