package handler

import (
	"errors"
	"net/http"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/flags"
	"github.com/lumenflow/portal/internal/kv"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/ui"
)

// FlagsHandler serves the one-time overlays: the onboarding tour and the
// cookie banner.
type FlagsHandler struct {
	store kv.Store
}

func NewFlagsHandler(store kv.Store) *FlagsHandler {
	return &FlagsHandler{store: store}
}

func clientFlags(store kv.Store, r *http.Request) *flags.Flags {
	return flags.New(kv.ForClient(store, ctxkeys.ClientID(r.Context())))
}

func (h *FlagsHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	completed, err := clientFlags(h.store, r).OnboardingCompleted(r.Context())
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

func (h *FlagsHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	err := clientFlags(h.store, r).CompleteOnboarding(r.Context())
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]bool{"completed": true})
}

func (h *FlagsHandler) ResetOnboarding(w http.ResponseWriter, r *http.Request) {
	err := clientFlags(h.store, r).ResetOnboarding(r.Context())
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]bool{"completed": false})
}

// CookieConsent answers null until the banner has been answered.
func (h *FlagsHandler) CookieConsent(w http.ResponseWriter, r *http.Request) {
	consent, err := clientFlags(h.store, r).CookieConsent(r.Context())
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]any{"consent": consent})
}

func (h *FlagsHandler) SaveCookieConsent(w http.ResponseWriter, r *http.Request) {
	var prefs model.ConsentPreferences
	if err := decode(r, &prefs); err != nil {
		badRequest(w, r, "")
		return
	}

	consent, err := clientFlags(h.store, r).SaveCookieConsent(r.Context(), prefs)
	if errors.Is(err, flags.ErrInvalidConsent) {
		badRequest(w, r, err.Error())
		return
	}
	if err != nil {
		loadFailed(w, r, err)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]any{"consent": consent})
}
