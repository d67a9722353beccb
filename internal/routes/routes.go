package routes

import (
	"net/http"

	"github.com/lumenflow/portal/internal/app"
	"github.com/lumenflow/portal/internal/handler"
	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	pages := handler.NewPageHandler(app.LegalService, app.SitemapService, app.Cfg.AppURL)
	contactForm := handler.NewContactHandler(app.ContactService)
	overlays := handler.NewFlagsHandler(app.KV)
	auth := handler.NewAuthHandler(app.AuthService)
	dashboard := handler.NewDashboardHandler(app.ProjectService, app.Resolver, app.Broker)
	knowledge := handler.NewKnowledgeHandler(app.KnowledgeService, app.ChatClient, app.KV, app.Cfg.ChatNeedsConsent, app.Broker)
	account := handler.NewAccountHandler(app.ProfileService)

	guard := middleware.RequireSession(app.Cfg.GuardWait)
	authLimit := middleware.RateLimitAuth()
	formLimit := middleware.RateLimitForms()

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	// SEO
	mux.HandleFunc("GET /robots.txt", pages.Robots)
	mux.HandleFunc("GET /sitemap.xml", pages.Sitemap)

	// Pages (English and German paths)
	for _, page := range locale.Pages {
		for _, lang := range []string{locale.EN, locale.DE} {
			path := locale.Path(page, lang)
			if path == "/" {
				path = "/{$}"
			}
			mux.HandleFunc("GET "+path, pages.Page)
		}
	}

	// Forms and consent
	mux.HandleFunc("POST /contact", formLimit(contactForm.Submit))
	mux.HandleFunc("GET /consent/cookies", overlays.CookieConsent)
	mux.HandleFunc("PUT /consent/cookies", overlays.SaveCookieConsent)

	// Auth
	mux.HandleFunc("GET /login", auth.LoginPage)
	mux.HandleFunc("POST /login", authLimit(auth.Login))
	mux.HandleFunc("POST /logout", auth.Logout)
	mux.HandleFunc("GET /auth/verify", authLimit(auth.VerifyLink))
	mux.HandleFunc("POST /auth/session", authLimit(auth.Session))
	mux.HandleFunc("POST /auth/recover", formLimit(auth.Recover))

	// ============================================================================
	// PORTAL ROUTES (session required)
	// ============================================================================

	// Dashboard and projects
	mux.HandleFunc("GET /dashboard", guard(dashboard.Dashboard))
	mux.HandleFunc("GET /dashboard/events", guard(dashboard.DashboardEvents))
	mux.HandleFunc("GET /projects/{id}", guard(dashboard.Project))
	mux.HandleFunc("GET /projects/{id}/events", guard(dashboard.ProjectEvents))

	// Asset library
	mux.HandleFunc("GET /assets", guard(dashboard.Assets))
	mux.HandleFunc("GET /assets/events", guard(dashboard.AssetEvents))
	mux.HandleFunc("POST /assets/{id}/preview", guard(dashboard.Preview))
	mux.HandleFunc("POST /assets/{id}/download", guard(dashboard.Download))

	// Knowledge base and chat
	mux.HandleFunc("GET /knowledge", guard(knowledge.List))
	mux.HandleFunc("GET /knowledge/events", guard(knowledge.Events))
	mux.HandleFunc("GET /knowledge/{slug}", guard(knowledge.Article))
	mux.HandleFunc("GET /knowledge/{slug}/chat", guard(knowledge.ChatHistory))
	mux.HandleFunc("POST /knowledge/{slug}/chat", guard(knowledge.ChatSend))
	mux.HandleFunc("DELETE /knowledge/{slug}/chat", guard(knowledge.ChatClear))
	mux.HandleFunc("POST /chat/consent", guard(knowledge.AcceptConsent))

	// Onboarding
	mux.HandleFunc("GET /onboarding", guard(overlays.Onboarding))
	mux.HandleFunc("POST /onboarding/complete", guard(overlays.CompleteOnboarding))
	mux.HandleFunc("DELETE /onboarding", guard(overlays.ResetOnboarding))

	// Account
	mux.HandleFunc("GET /account", guard(account.Account))
	mux.HandleFunc("PATCH /account/profile", guard(account.UpdateProfile))
	mux.HandleFunc("POST /account/password", guard(account.UpdatePassword))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	// 404
	mux.HandleFunc("/{path...}", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Config(app.Cfg), // Config must be first (Client reads it for cookie flags)
		middleware.SecurityHeaders, // Security headers for all responses
		middleware.LegacyRedirects, // Retired German slugs, before anything else looks at the path
		middleware.Locale,
		middleware.Client(app.Registry), // Mounts the browser's session store
		middleware.RequestLogging,       // After Client and Locale so lines carry client_id and lang
		middleware.CSRFProtection,       // CSRF protection for all state-changing requests
	)

	return handler
}
