package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/locale"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/ui"
)

const maxBody = 1 << 20

var errBadBody = errors.New("invalid request body")

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	err := dec.Decode(v)
	if err != nil {
		return errBadBody
	}
	return nil
}

func message(r *http.Request, key string) string {
	return locale.Message(ctxkeys.Lang(r.Context()), key)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = errBadBody.Error()
	}
	ui.Error(w, http.StatusBadRequest, "bad_request", msg)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	ui.Error(w, http.StatusNotFound, "not_found", message(r, "not_found"))
}

// loadFailed answers a failed primary query. The client may retry.
func loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("load failed", "error", err, "path", r.URL.Path, "client_id", ctxkeys.ClientID(r.Context()))
	ui.RenderError(w, http.StatusInternalServerError, ui.ErrorBody{
		Code:    "load_failed",
		Message: message(r, "load.failed"),
		Retry:   true,
	})
}

// loadError maps a loader error to not found or load failed.
func loadError(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsNotFound(err) {
		notFound(w, r)
		return
	}
	loadFailed(w, r, err)
}

// viewer is the identity the request loads data for. The profile of a fresh
// sign in may still be on its way; it is fetched once more before falling
// back to a plain client view.
func viewer(r *http.Request) service.Viewer {
	ctx := r.Context()
	if profile := ctxkeys.Profile(ctx); profile != nil {
		return service.ViewerOf(profile)
	}

	user := ctxkeys.User(ctx)
	if user == nil {
		return service.Viewer{}
	}
	if store := ctxkeys.Session(ctx); store != nil {
		profile, err := store.RefreshProfile(ctx)
		if err != nil {
			slog.Warn("failed to load profile, using client view", "error", err, "user_id", user.ID)
		}
		if profile != nil {
			return service.ViewerOf(profile)
		}
	}
	return service.Viewer{UserID: user.ID}
}

// NotFound is the fallback of every unknown path.
func NotFound(w http.ResponseWriter, r *http.Request) {
	notFound(w, r)
}
