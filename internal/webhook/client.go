// Package webhook delivers JSON payloads to the outbound workflow webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

var (
	ErrNotConfigured = errors.New("webhook not configured")
	ErrTimeout       = errors.New("webhook timed out")
	ErrNetwork       = errors.New("webhook unreachable")
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// ServerError is a non-2xx answer.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Status, e.Body)
}

type Client struct {
	url     string
	timeout time.Duration
	signer  *Signer
	http    *http.Client
}

// NewClient posts to url. An empty url makes every Post fail with
// ErrNotConfigured. signer may be nil.
func NewClient(url string, timeout time.Duration, signer *Signer) *Client {
	return &Client{
		url:     url,
		timeout: timeout,
		signer:  signer,
		http:    &http.Client{},
	}
}

func (c *Client) Configured() bool {
	return c.url != ""
}

// Post sends payload as JSON and returns the response body of a 2xx answer.
func (c *Client) Post(ctx context.Context, payload any) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.signer != nil {
		err = c.signer.SignRequest(req, data)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
