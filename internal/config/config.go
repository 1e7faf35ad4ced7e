package config

import (
	"fmt"
	"time"

	"github.com/quotamail/quotamail/internal/mailer"
	"github.com/quotamail/quotamail/internal/models"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Quota    QuotaConfig    `yaml:"quota"`
	Store    StoreConfig    `yaml:"store"`
	Mail     MailConfig     `yaml:"mail"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	Enabled  bool       `yaml:"enabled"`
	BasePath string     `yaml:"base_path"`
	Auth     AuthConfig `yaml:"auth"`
}

// AuthConfig contains authentication configuration.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// QuotaConfig configures crossing detection: the watched threshold ratios
// and the grace period suppressing repeat notifications.
type QuotaConfig struct {
	// Thresholds are ratios in (0, 1], e.g. 0.8 for 80%.
	Thresholds []float64 `yaml:"thresholds"`
	// GracePeriod is the window during which a re-crossing of an already
	// notified threshold stays silent. Default: 24h.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// ThresholdSet builds the model threshold set from the configured ratios.
func (q *QuotaConfig) ThresholdSet() (models.ThresholdSet, error) {
	return models.NewThresholdSetFromRatios(q.Thresholds...)
}

// StoreConfig contains history store configuration.
type StoreConfig struct {
	// Backend selects the store implementation: "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
	// RetentionDays drops history entries older than this many days. Zero
	// keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// MailConfig contains notification mail configuration.
type MailConfig struct {
	SMTP mailer.SMTPConfig `yaml:"smtp"`
	// Subject overrides the default notification subject line.
	Subject string `yaml:"subject"`
	// DefaultDomain completes bare quota roots into addresses.
	DefaultDomain string `yaml:"default_domain"`
	// Recipients maps a quota root to explicit recipient addresses.
	Recipients map[string][]string `yaml:"recipients"`
}

// TelegramConfig contains the operator alert channel configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Mail.Validate(); err != nil {
		return fmt.Errorf("mail: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
	return nil
}

// Validate validates API configuration.
func (a *APIConfig) Validate() error {
	if a.BasePath == "" {
		a.BasePath = "/v1"
	}
	if a.Auth.Enabled && len(a.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth: api_keys is required when auth is enabled")
	}
	if a.Auth.HeaderName == "" {
		a.Auth.HeaderName = "X-API-Key"
	}
	return nil
}

// Validate validates quota configuration. Threshold ratios outside (0, 1]
// are a startup error, not something to silently clamp.
func (q *QuotaConfig) Validate() error {
	if len(q.Thresholds) == 0 {
		return fmt.Errorf("at least one threshold is required")
	}
	for _, ratio := range q.Thresholds {
		if _, err := models.NewThreshold(ratio); err != nil {
			return err
		}
		if ratio == 0 {
			return fmt.Errorf("threshold ratio must be greater than zero")
		}
	}
	if q.GracePeriod < 0 {
		return fmt.Errorf("grace_period cannot be negative")
	}
	if q.GracePeriod == 0 {
		q.GracePeriod = 24 * time.Hour
	}
	return nil
}

// Validate validates store configuration.
func (s *StoreConfig) Validate() error {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Backend != "memory" && s.Backend != "sqlite" {
		return fmt.Errorf("backend must be one of: memory, sqlite")
	}
	if s.Backend == "sqlite" && s.Path == "" {
		return fmt.Errorf("path is required for the sqlite backend")
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("retention_days cannot be negative")
	}
	return nil
}

// Validate validates mail configuration.
func (m *MailConfig) Validate() error {
	if m.SMTP.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if m.SMTP.Port == 0 {
		m.SMTP.Port = 25
	}
	if m.SMTP.Port < 0 || m.SMTP.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if m.SMTP.From == "" {
		return fmt.Errorf("smtp from address is required")
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return fmt.Errorf("bot_token is required when telegram is enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when telegram is enabled")
	}
	return nil
}
