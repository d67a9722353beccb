package middleware

import "net/http"

// Chain wraps h so that the middlewares run in the order given, the first one
// outermost:
//
//	Chain(mux, Config(cfg), Locale, Client(registry))
//
// sees Config first and Client last before the mux.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
