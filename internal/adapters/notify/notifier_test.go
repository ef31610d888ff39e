package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionGuard/config"
	"positionGuard/internal/domain"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type capture struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]string
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p map[string]string
		_ = json.NewDecoder(r.Body).Decode(&p)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func TestDispatcher_DisabledSendsNothing(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher(config.NotificationConfig{
		Enabled:          false,
		WebhookURL:       srv.URL + "/hook",
		TelegramBotToken: "tok",
		TelegramChatID:   "1",
	}, &mockLogger{}, WithTelegramAPI(srv.URL))

	d.Notify(context.Background(), domain.LevelError, "boom")
	assert.False(t, d.Enabled())
	assert.Empty(t, c.paths)
}

func TestDispatcher_FansOut(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher(config.NotificationConfig{
		Enabled:          true,
		WebhookURL:       srv.URL + "/hook",
		TelegramBotToken: "tok",
		TelegramChatID:   "42",
	}, &mockLogger{}, WithTelegramAPI(srv.URL))

	d.Notify(context.Background(), domain.LevelWarning, "ETH-USDT <oversized>")

	require.Len(t, c.paths, 2)
	assert.Equal(t, "/hook", c.paths[0])
	assert.Equal(t, "[BingX Bot] WARNING: ETH-USDT <oversized>", c.payloads[0]["text"])
	assert.NotEmpty(t, c.payloads[0]["timestamp"])

	assert.Equal(t, "/bottok/sendMessage", c.paths[1])
	assert.Equal(t, "42", c.payloads[1]["chat_id"])
	assert.Equal(t, "HTML", c.payloads[1]["parse_mode"])
	assert.Contains(t, c.payloads[1]["text"], "WARNING: ETH-USDT &lt;oversized&gt;")
}

func TestDispatcher_FailuresAreLoggedNotReturned(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError))
	defer srv.Close()

	logger := &mockLogger{}
	d := NewDispatcher(config.NotificationConfig{
		Enabled:          true,
		WebhookURL:       srv.URL + "/hook",
		TelegramBotToken: "tok",
		TelegramChatID:   "42",
	}, logger, WithTelegramAPI(srv.URL))

	d.Notify(context.Background(), domain.LevelInfo, "hello")

	assert.Len(t, c.paths, 2, "a failing webhook does not block telegram")
	assert.Len(t, logger.errors, 2)
}

func TestDispatcher_Reload(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	d := NewDispatcher(config.NotificationConfig{}, &mockLogger{})
	assert.False(t, d.Enabled())

	d.Reload(config.NotificationConfig{Enabled: true, WebhookURL: srv.URL})
	assert.True(t, d.Enabled())
	d.Notify(context.Background(), domain.LevelSuccess, "partial close")
	assert.Len(t, c.paths, 1)
}
