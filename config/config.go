package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"positionGuard/internal/adapters/logger" // Import the logger package for LogLevel
	"positionGuard/internal/ports"
)

// DefaultPath is the configuration file used when no --config flag is given.
const DefaultPath = "bingx_config.json"

// Placeholder credentials written into a freshly created configuration document.
const (
	PlaceholderAPIKey    = "YOUR_API_KEY"
	PlaceholderSecretKey = "YOUR_SECRET_KEY"
)

// ErrConfigCreated is returned by Load when the file did not exist and a default
// document was written in its place. Callers should exit cleanly and ask the
// operator to fill in credentials.
var ErrConfigCreated = errors.New("default configuration created")

// Config holds all application configuration.
type Config struct {
	// BingX API
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
	Testnet   bool   `json:"testnet" mapstructure:"testnet"`
	DryRun    bool   `json:"dry_run" mapstructure:"dry_run"`

	// Position management
	CheckInterval       int      `json:"check_interval" mapstructure:"check_interval"` // seconds
	ProfitThreshold     float64  `json:"profit_threshold" mapstructure:"profit_threshold"`
	PartialClosePercent float64  `json:"partial_close_percent" mapstructure:"partial_close_percent"`
	StopLossOffset      float64  `json:"stop_loss_offset" mapstructure:"stop_loss_offset"`
	MinPositionSize     float64  `json:"min_position_size" mapstructure:"min_position_size"` // USDT
	EnabledSymbols      []string `json:"enabled_symbols" mapstructure:"enabled_symbols"`
	DisabledSymbols     []string `json:"disabled_symbols" mapstructure:"disabled_symbols"`
	EmergencyStop       bool     `json:"emergency_stop" mapstructure:"emergency_stop"`

	// Parsed but not acted upon; requests are never retried.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
	RetryDelay int `json:"retry_delay" mapstructure:"retry_delay"`

	RiskManagement RiskConfig         `json:"risk_management" mapstructure:"risk_management"`
	Notifications  NotificationConfig `json:"notifications" mapstructure:"notifications"`

	// Runtime
	LogFile     string `json:"log_file" mapstructure:"log_file"`
	LogLevel    string `json:"log_level" mapstructure:"log_level"`
	JournalPath string `json:"journal_path" mapstructure:"journal_path"` // empty disables the journal
	StatusAddr  string `json:"status_addr" mapstructure:"status_addr"`   // empty disables the status server
}

// RiskConfig holds the emergency brake thresholds.
type RiskConfig struct {
	MaxDailyTrades    int     `json:"max_daily_trades" mapstructure:"max_daily_trades"`
	MaxPositionValue  float64 `json:"max_position_value" mapstructure:"max_position_value"`
	BlacklistOnErrors bool    `json:"blacklist_on_errors" mapstructure:"blacklist_on_errors"`
	ErrorThreshold    int     `json:"error_threshold" mapstructure:"error_threshold"`
}

// NotificationConfig configures the outbound notification channels.
type NotificationConfig struct {
	Enabled          bool   `json:"enabled" mapstructure:"enabled"`
	WebhookURL       string `json:"webhook_url" mapstructure:"webhook_url"`
	TelegramBotToken string `json:"telegram_bot_token" mapstructure:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id" mapstructure:"telegram_chat_id"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		APIKey:              PlaceholderAPIKey,
		SecretKey:           PlaceholderSecretKey,
		Testnet:             true,
		DryRun:              true,
		CheckInterval:       60,
		ProfitThreshold:     0.01,
		PartialClosePercent: 0.5,
		StopLossOffset:      0.005,
		MinPositionSize:     10,
		EnabledSymbols:      []string{},
		DisabledSymbols:     []string{},
		MaxRetries:          3,
		RetryDelay:          5,
		RiskManagement: RiskConfig{
			MaxDailyTrades:    50,
			MaxPositionValue:  1000,
			BlacklistOnErrors: true,
			ErrorThreshold:    5,
		},
		LogFile:     "bingx_position_manager.log",
		LogLevel:    "INFO",
		JournalPath: "data/position_journal.db",
	}
}

// Interval returns the polling interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// Level returns the parsed log level.
func (c *Config) Level() logger.LogLevel {
	return logger.ParseLevel(c.LogLevel)
}

// HasCredentials reports whether real (non-placeholder) API keys are configured.
func (c *Config) HasCredentials() bool {
	return c.APIKey != "" && c.SecretKey != "" &&
		c.APIKey != PlaceholderAPIKey && c.SecretKey != PlaceholderSecretKey
}

// Load reads the configuration document at path. When the file is missing the
// default document is written and ErrConfigCreated is returned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config '%s': %w", path, err)
		}
		return nil, ErrConfigCreated
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	if v := strings.TrimSpace(os.Getenv("BINGX_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("BINGX_SECRET_KEY")); v != "" {
		cfg.SecretKey = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config '%s': %w", path, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("testnet", d.Testnet)
	v.SetDefault("dry_run", false)
	v.SetDefault("check_interval", d.CheckInterval)
	v.SetDefault("profit_threshold", d.ProfitThreshold)
	v.SetDefault("partial_close_percent", d.PartialClosePercent)
	v.SetDefault("stop_loss_offset", d.StopLossOffset)
	v.SetDefault("min_position_size", d.MinPositionSize)
	v.SetDefault("enabled_symbols", []string{})
	v.SetDefault("disabled_symbols", []string{})
	v.SetDefault("emergency_stop", false)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_delay", d.RetryDelay)
	v.SetDefault("risk_management.max_daily_trades", d.RiskManagement.MaxDailyTrades)
	v.SetDefault("risk_management.max_position_value", d.RiskManagement.MaxPositionValue)
	v.SetDefault("risk_management.blacklist_on_errors", d.RiskManagement.BlacklistOnErrors)
	v.SetDefault("risk_management.error_threshold", d.RiskManagement.ErrorThreshold)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.webhook_url", "")
	v.SetDefault("notifications.telegram_bot_token", "")
	v.SetDefault("notifications.telegram_chat_id", "")
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("journal_path", d.JournalPath)
	v.SetDefault("status_addr", "")
}

// Validate checks value ranges and collects every problem into one error.
func (c *Config) Validate() error {
	var errs []string // Collect validation errors

	if !c.DryRun && !c.HasCredentials() {
		errs = append(errs, "api_key and secret_key must be set unless dry_run is enabled")
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, "check_interval must be positive")
	}
	if c.ProfitThreshold <= 0 {
		errs = append(errs, "profit_threshold must be positive")
	}
	if c.PartialClosePercent <= 0 || c.PartialClosePercent >= 1 {
		errs = append(errs, "partial_close_percent must be between 0.0 and 1.0 (exclusive)")
	}
	if c.StopLossOffset <= 0 || c.StopLossOffset >= 1 {
		errs = append(errs, "stop_loss_offset must be between 0.0 and 1.0 (exclusive)")
	}
	if c.MinPositionSize < 0 {
		errs = append(errs, "min_position_size cannot be negative")
	}
	if c.RiskManagement.MaxDailyTrades <= 0 {
		errs = append(errs, "risk_management.max_daily_trades must be positive")
	}
	if c.RiskManagement.MaxPositionValue <= 0 {
		errs = append(errs, "risk_management.max_position_value must be positive")
	}
	if c.RiskManagement.ErrorThreshold <= 0 {
		errs = append(errs, "risk_management.error_threshold must be positive")
	}
	if c.MinPositionSize > c.RiskManagement.MaxPositionValue {
		errs = append(errs, "min_position_size must not exceed risk_management.max_position_value")
	}
	n := c.Notifications
	if n.Enabled && n.WebhookURL == "" && (n.TelegramBotToken == "" || n.TelegramChatID == "") {
		errs = append(errs, "notifications enabled but neither webhook_url nor telegram_bot_token/telegram_chat_id is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// Save writes cfg to path as indented JSON. The document is written to a
// temporary file in the same directory and renamed over path.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory '%s': %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to chmod temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config '%s': %w", path, err)
	}
	return nil
}

// Peek reads the document at path without validating it or creating it.
func Peek(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config '%s' not available: %w", path, err)
	}
	return read(path)
}

// SetEmergencyStop loads the document at path, sets emergency_stop and saves it.
// Validation is skipped so the flag can be toggled on an incomplete document.
func SetEmergencyStop(path string, on bool) error {
	cfg, err := Peek(path)
	if err != nil {
		return err
	}
	cfg.EmergencyStop = on
	return Save(path, cfg)
}

// Store re-reads the configuration file on demand.
type Store struct {
	Path string
}

// NewStore creates a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load returns a freshly read and validated configuration.
// A missing file is an error here; defaults are only written at startup.
func (s *Store) Load() (*Config, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("config '%s' not available: %w", s.Path, err)
	}
	return Load(s.Path)
}

// EmergencyStop reads only the emergency flag from the file.
func (s *Store) EmergencyStop() (bool, error) {
	cfg, err := Peek(s.Path)
	if err != nil {
		return false, err
	}
	return cfg.EmergencyStop, nil
}
