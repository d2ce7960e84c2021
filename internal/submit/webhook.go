package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/readypath/assess-gateway/internal/models"
)

// ErrNotConfigured means no webhook URL is set. Callers respond with a
// success-plus-note rather than treating this as a failure.
var ErrNotConfigured = errors.New("webhook url not configured")

// Webhook delivers submissions to the external spreadsheet receiver.
// Delivery failures never block the user-visible flow; callers surface them
// as a secondary warning.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
}

// NewWebhook creates a webhook client. An empty url is valid and makes
// Deliver return ErrNotConfigured.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Configured reports whether a webhook URL is set
func (w *Webhook) Configured() bool {
	return w.url != ""
}

// Deliver POSTs the submission as JSON and expects a 2xx response. When a
// secret is configured the payload is wrapped with an HMAC signature block.
// Errors never include response bodies from the receiver.
func (w *Webhook) Deliver(ctx context.Context, sub models.AssessmentSubmission) error {
	if w.url == "" {
		return ErrNotConfigured
	}

	var payload any = sub
	if w.secret != "" {
		signed, err := Sign(sub, w.secret, w.now())
		if err != nil {
			return err
		}
		payload = signed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook receiver returned status %d", resp.StatusCode)
	}

	return nil
}
