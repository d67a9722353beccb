package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/live"
	"github.com/lumenflow/portal/internal/middleware"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/ui"
)

var pingInterval = 25 * time.Second

// serveLive streams a live view as server-sent events. Every reload is sent
// as event name with the whole view. When the signed in identity changes the
// watcher is rescoped to the new viewer; on sign out the stream ends with a
// signed_out event pointing at the login.
func serveLive[T any](w http.ResponseWriter, r *http.Request, feed live.Subscriber, name string, configFor func(service.Viewer) live.Config[T]) {
	ctx := r.Context()
	store := ctxkeys.Session(ctx)
	if store == nil {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	changed := store.Changed()
	v := viewer(r)
	watcher, err := live.Watch(ctx, feed, configFor(v))
	if err != nil {
		loadError(w, r, err)
		return
	}
	defer watcher.Close()

	stream := ui.NewStream(w)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case view, ok := <-watcher.Updates():
			if !ok {
				if service.IsNotFound(watcher.Err()) {
					_ = stream.Send("not_found", ui.ErrorBody{Code: "not_found", Message: message(r, "not_found")})
				}
				return
			}
			err = stream.Send(name, view)
			if err != nil {
				return
			}

		case <-changed:
			state := store.Snapshot()
			if state.User == nil {
				_ = stream.Send("signed_out", map[string]string{"login": middleware.LoginURL(r.URL.Path)})
				return
			}
			if state.User.ID == v.UserID {
				// Unmounted store, nothing will change any more
				return
			}

			changed = store.Changed()
			v = service.ViewerOf(state.Profile)
			if state.Profile == nil {
				v = service.Viewer{UserID: state.User.ID}
			}
			err = watcher.Rescope(configFor(v))
			if err != nil {
				slog.Warn("live rescope failed", "error", err, "view", name, "user_id", v.UserID)
				_ = stream.Send("error", ui.ErrorBody{Code: "load_failed", Message: message(r, "load.failed"), Retry: true})
				return
			}

		case <-ticker.C:
			store.Touch()
			err = stream.Ping()
			if err != nil {
				return
			}
		}
	}
}
