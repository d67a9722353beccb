package ui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Form    any               `json:"form,omitempty"`
	Retry   bool              `json:"retry,omitempty"`
	Login   string            `json:"login,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("render json failed", "error", err)
	}
}

// Error writes an error response. message is the localized text for the user.
func Error(w http.ResponseWriter, status int, code, message string) {
	RenderError(w, status, ErrorBody{Code: code, Message: message})
}

func RenderError(w http.ResponseWriter, status int, body ErrorBody) {
	if body.Error == "" {
		body.Error = http.StatusText(status)
	}
	JSON(w, status, body)
}

// Stream writes server-sent events.
type Stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewStream sends the event stream headers. Writes fail when the response
// writer cannot flush.
func NewStream(w http.ResponseWriter) *Stream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &Stream{w: w, rc: http.NewResponseController(w)}
	// Streams outlive the server's write timeout
	_ = s.rc.SetWriteDeadline(time.Time{})
	return s
}

// Send writes one event with a JSON payload and flushes it.
func (s *Stream) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	if err != nil {
		return err
	}
	return s.rc.Flush()
}

// Ping keeps idle connections open through proxies.
func (s *Stream) Ping() error {
	_, err := fmt.Fprint(s.w, ": ping\n\n")
	if err != nil {
		return err
	}
	return s.rc.Flush()
}
