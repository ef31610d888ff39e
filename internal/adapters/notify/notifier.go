// Package notify fans operator notifications out to the configured channels.
// Delivery is best effort: failures are logged and never returned.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"positionGuard/config"
	"positionGuard/internal/domain"
	"positionGuard/internal/ports"
)

const sendTimeout = 5 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one message at the given level.
	Send(ctx context.Context, level domain.NotifyLevel, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Dispatcher implements ports.Notifier over a reloadable set of senders.
type Dispatcher struct {
	mu      sync.RWMutex
	senders []Sender
	logger  ports.Logger
	client  *http.Client
	now     func() time.Time

	telegramBase string
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default 5s-timeout HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithTelegramAPI points the Telegram sender at another Bot API host.
func WithTelegramAPI(base string) Option {
	return func(d *Dispatcher) { d.telegramBase = base }
}

// NewDispatcher builds the senders described by cfg.
func NewDispatcher(cfg config.NotificationConfig, logger ports.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:       logger,
		client:       &http.Client{Timeout: sendTimeout},
		now:          time.Now,
		telegramBase: telegramAPIBase,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Reload(cfg)
	return d
}

// Reload rebuilds the sender list from a fresh configuration snapshot.
func (d *Dispatcher) Reload(cfg config.NotificationConfig) {
	var senders []Sender
	if cfg.Enabled {
		if cfg.WebhookURL != "" {
			senders = append(senders, &WebhookSender{url: cfg.WebhookURL, client: d.client, now: d.now})
		}
		if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
			senders = append(senders, &TelegramSender{
				base:   d.telegramBase,
				token:  cfg.TelegramBotToken,
				chatID: cfg.TelegramChatID,
				client: d.client,
			})
		}
	}
	d.mu.Lock()
	d.senders = senders
	d.mu.Unlock()
}

// Enabled reports whether at least one channel is configured.
func (d *Dispatcher) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.senders) > 0
}

// Notify delivers message to every sender. A failing sender does not stop the
// others.
func (d *Dispatcher) Notify(ctx context.Context, level domain.NotifyLevel, message string) {
	d.mu.RLock()
	senders := d.senders
	d.mu.RUnlock()

	for _, s := range senders {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sendCtx, level, message)
		cancel()
		if err != nil {
			d.logger.Error(ctx, err, "Notification delivery failed", map[string]interface{}{"sender": s.Name(), "level": level})
			continue
		}
		d.logger.Debug(ctx, "Notification sent", map[string]interface{}{"sender": s.Name(), "level": level})
	}
}

var _ ports.Notifier = (*Dispatcher)(nil)
