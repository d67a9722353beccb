package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lumenflow/portal/internal/ctxkeys"
	"github.com/lumenflow/portal/internal/identity"
	"github.com/lumenflow/portal/internal/service"
	"github.com/lumenflow/portal/internal/ui"
	"github.com/lumenflow/portal/internal/validation"
)

type AccountHandler struct {
	profileService *service.ProfileService
}

func NewAccountHandler(profileService *service.ProfileService) *AccountHandler {
	return &AccountHandler{profileService: profileService}
}

func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := ctxkeys.Profile(ctx)
	if profile == nil {
		var err error
		profile, err = ctxkeys.Session(ctx).RefreshProfile(ctx)
		if err != nil {
			slog.Warn("failed to load profile", "error", err, "user_id", ctxkeys.User(ctx).ID)
		}
	}

	ui.JSON(w, http.StatusOK, map[string]any{
		"user":    ctxkeys.User(ctx),
		"profile": profile,
	})
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd service.ProfileUpdate
	if err := decode(r, &upd); err != nil {
		badRequest(w, r, "")
		return
	}
	if upd.Name != nil {
		if err := validation.ValidateName(*upd.Name); err != nil {
			ui.RenderError(w, http.StatusBadRequest, ui.ErrorBody{
				Code:    "invalid_profile",
				Message: err.Error(),
				Fields:  map[string]string{"name": err.Error()},
			})
			return
		}
	}

	ctx := r.Context()
	user := ctxkeys.User(ctx)
	profile, err := h.profileService.Update(ctx, user.ID, upd)
	if errors.Is(err, service.ErrInvalidAvatarURL) {
		ui.RenderError(w, http.StatusBadRequest, ui.ErrorBody{
			Code:    "invalid_profile",
			Message: err.Error(),
			Fields:  map[string]string{"avatar_url": err.Error()},
		})
		return
	}
	if err != nil {
		loadFailed(w, r, err)
		return
	}

	// Keep the session store in step so later requests see the new profile
	if _, err := ctxkeys.Session(ctx).RefreshProfile(ctx); err != nil {
		slog.Warn("failed to refresh session profile", "error", err, "user_id", user.ID)
	}
	ui.JSON(w, http.StatusOK, profile)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// UpdatePassword sets a new password, e.g. right after a recovery link.
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, r, "")
		return
	}
	if err := validation.ValidatePassword(req.Password, ctxkeys.User(r.Context()).Email); err != nil {
		ui.RenderError(w, http.StatusBadRequest, ui.ErrorBody{
			Code:    "invalid_password",
			Message: err.Error(),
			Fields:  map[string]string{"password": err.Error()},
		})
		return
	}

	err := ctxkeys.Session(r.Context()).UpdatePassword(r.Context(), req.Password)
	if err != nil {
		authFailed(w, r, err, nil)
		return
	}
	ui.JSON(w, http.StatusOK, map[string]string{"message": message(r, "password.updated")})
}

// authFailed answers a failed auth call with the localized message of its
// kind. form is echoed back so the page can keep the user's input.
func authFailed(w http.ResponseWriter, r *http.Request, err error, form any) {
	authErr := identity.Classify(err)

	status := http.StatusBadRequest
	switch authErr.Kind {
	case identity.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case identity.KindNetwork:
		status = http.StatusServiceUnavailable
	case identity.KindUnknown:
		slog.Error("auth call failed", "error", err, "client_id", ctxkeys.ClientID(r.Context()))
	}

	ui.RenderError(w, status, ui.ErrorBody{
		Code:    string(authErr.Kind),
		Message: message(r, "auth."+string(authErr.Kind)),
		Form:    form,
	})
}
