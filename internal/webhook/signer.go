package webhook

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// Signer adds Standard Webhooks signature headers to outbound requests so
// the receiving workflow can verify they came from the portal.
type Signer struct {
	wh *standardwebhooks.Webhook
}

// NewSigner accepts a "whsec_" base64 secret or a raw secret.
func NewSigner(secret string) (*Signer, error) {
	var wh *standardwebhooks.Webhook
	var err error
	if strings.HasPrefix(secret, "whsec_") {
		wh, err = standardwebhooks.NewWebhook(secret)
	} else {
		wh, err = standardwebhooks.NewWebhookRaw([]byte(secret))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook signer: %w", err)
	}
	return &Signer{wh: wh}, nil
}

func (s *Signer) SignRequest(req *http.Request, payload []byte) error {
	msgID := "msg_" + uuid.New().String()
	now := time.Now()

	signature, err := s.wh.Sign(msgID, now, payload)
	if err != nil {
		return fmt.Errorf("failed to sign webhook: %w", err)
	}

	req.Header.Set(HeaderID, msgID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(HeaderSignature, signature)
	return nil
}
