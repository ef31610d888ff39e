package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"positionGuard/internal/domain"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	base   string
	token  string
	chatID string
	client *http.Client
}

// Send posts a message to the configured chat using the sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, level domain.NotifyLevel, message string) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("<b>BingX Bot</b>\n%s: %s", level, html.EscapeString(message)),
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	return postJSON(ctx, t.client, url, body, "telegram")
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
