package handler

import (
	"errors"
	"net/http"

	"github.com/lumenflow/portal/internal/contact"
	"github.com/lumenflow/portal/internal/ui"
)

type ContactHandler struct {
	contactService *contact.Service
}

func NewContactHandler(contactService *contact.Service) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// Submit forwards the contact form. On failure the form comes back with the
// error so the visitor keeps what they typed.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form contact.Submission
	if err := decode(r, &form); err != nil {
		badRequest(w, r, "")
		return
	}

	err := h.contactService.Submit(r.Context(), form)
	if err == nil {
		ui.JSON(w, http.StatusOK, map[string]string{"message": message(r, "contact.sent")})
		return
	}

	status, key := contactFailure(err)
	body := ui.ErrorBody{
		Code:    key,
		Message: message(r, key),
		Form:    form,
	}
	var invalid *contact.ValidationError
	if errors.As(err, &invalid) {
		body.Fields = invalid.Fields
	}
	ui.RenderError(w, status, body)
}

func contactFailure(err error) (int, string) {
	var invalid *contact.ValidationError
	var serverErr *contact.ServerError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "contact.invalid"
	case errors.Is(err, contact.ErrNotConfigured):
		return http.StatusServiceUnavailable, "contact.not_configured"
	case errors.Is(err, contact.ErrTimeout):
		return http.StatusGatewayTimeout, "contact.timeout"
	case errors.Is(err, contact.ErrNetwork):
		return http.StatusBadGateway, "contact.network"
	case errors.As(err, &serverErr):
		return http.StatusBadGateway, "contact.server"
	}
	return http.StatusInternalServerError, "contact.server"
}
