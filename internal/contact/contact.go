// Package contact validates contact form submissions and forwards them to the
// contact workflow webhook.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/validation"
	"github.com/lumenflow/portal/internal/webhook"
)

var (
	ErrNotConfigured = webhook.ErrNotConfigured
	ErrTimeout       = webhook.ErrTimeout
	ErrNetwork       = webhook.ErrNetwork
)

type ServerError = webhook.ServerError

type Submission struct {
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Website     string   `json:"website"`
	CompanySize string   `json:"companySize"`
	Budget      string   `json:"budget"`
	Interests   []string `json:"interests"`
	Message     string   `json:"message"`
	Consent     bool     `json:"consent"`
}

// ValidationError maps each invalid field to its message key.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid contact form: " + strings.Join(names, ", ")
}

const (
	ReasonRequired = "required"
	ReasonInvalid  = "invalid"
	ReasonTooLong  = "too_long"
)

const maxMessage = 5000

func Validate(s Submission) error {
	fields := make(map[string]string)

	switch err := validation.ValidateName(s.Name); {
	case errors.Is(err, validation.ErrRequired):
		fields["name"] = ReasonRequired
	case err != nil:
		fields["name"] = ReasonTooLong
	}

	switch {
	case strings.TrimSpace(s.Email) == "":
		fields["email"] = ReasonRequired
	case validation.ValidateEmail(strings.TrimSpace(s.Email)) != nil:
		fields["email"] = ReasonInvalid
	}

	switch {
	case strings.TrimSpace(s.Message) == "":
		fields["message"] = ReasonRequired
	case len(s.Message) > maxMessage:
		fields["message"] = ReasonTooLong
	}

	if !s.Consent {
		fields["consent"] = ReasonRequired
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type Service struct {
	client *webhook.Client
	source string
	now    func() time.Time
}

// NewService forwards submissions tagged with source, e.g. "website".
func NewService(client *webhook.Client, source string) *Service {
	return &Service{client: client, source: source, now: time.Now}
}

// Submit validates s and delivers it. Nothing is sent when validation fails.
func (svc *Service) Submit(ctx context.Context, s Submission) error {
	err := Validate(s)
	if err != nil {
		return err
	}

	interests := s.Interests
	if interests == nil {
		interests = []string{}
	}

	form := model.ContactForm{
		Name:        strings.TrimSpace(s.Name),
		Company:     strings.TrimSpace(s.Company),
		Email:       strings.TrimSpace(s.Email),
		Role:        s.Role,
		Website:     s.Website,
		CompanySize: s.CompanySize,
		Budget:      s.Budget,
		Interests:   interests,
		Message:     s.Message,
		Consent:     s.Consent,
		Timestamp:   svc.now().UTC().Format(time.RFC3339),
		Source:      svc.source,
	}

	_, err = svc.client.Post(ctx, form)
	if err != nil {
		slog.Warn("contact submission failed", "error", err)
		return fmt.Errorf("failed to deliver contact form: %w", err)
	}

	slog.Info("contact submission delivered", "interests", len(interests))
	return nil
}
