package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"positionGuard/internal/domain"
)

// WebhookSender posts {text, timestamp} JSON to a generic webhook.
type WebhookSender struct {
	url    string
	client *http.Client
	now    func() time.Time
}

type webhookPayload struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Send posts one message.
func (w *WebhookSender) Send(ctx context.Context, level domain.NotifyLevel, message string) error {
	body, err := json.Marshal(webhookPayload{
		Text:      fmt.Sprintf("[BingX Bot] %s: %s", level, message),
		Timestamp: w.now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}
	return postJSON(ctx, w.client, w.url, body, "webhook")
}

// Name returns the sender identifier.
func (w *WebhookSender) Name() string {
	return "webhook"
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", name, resp.StatusCode, string(respBody))
	}
	return nil
}
