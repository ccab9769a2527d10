package config

import (
	"time"

	"github.com/fortaops/sentinel/internal/core/domain"
	redisclient "github.com/fortaops/sentinel/internal/infra/redis"
	"github.com/fortaops/sentinel/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration document. It is loaded
// once at startup; changes require a restart.
type AppConfig struct {
	// ScannerPoolInterval is the SLA poll period in seconds.
	ScannerPoolInterval int `json:"scanner_pool_interval" yaml:"scanner_pool_interval"`

	// WalletPoolInterval is kept for config compatibility; transfer alerts
	// are dispatched as events arrive.
	WalletPoolInterval int `json:"wallet_pool_interval" yaml:"wallet_pool_interval"`

	// UnreachableAfter is the consecutive fetch failure streak that
	// escalates to an unreachable alert.
	UnreachableAfter int `json:"unreachable_after" yaml:"unreachable_after"`

	// DBPath is the registry document path, used when no database URL is
	// configured.
	DBPath string `json:"db_path" yaml:"db_path"`

	// URL is the SLA endpoint base; the scanner address is appended.
	URL string `json:"url" yaml:"url"`

	Chains map[string]domain.ChainConfig `json:"chains" yaml:"chains"`

	Server    ServerConfig       `json:"server"    yaml:"server"`
	Logging   LoggingConfig      `json:"logging"   yaml:"logging"`
	Database  postgres.Config    `json:"database"  yaml:"database"`
	Redis     redisclient.Config `json:"redis"     yaml:"redis"`
	Telegram  TelegramConfig     `json:"telegram"  yaml:"telegram"`
	Reconnect ReconnectConfig    `json:"reconnect" yaml:"reconnect"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// TelegramConfig holds the chat notifier settings. When Token is empty the
// console notifier is used instead.
type TelegramConfig struct {
	Token  string `json:"token"   yaml:"token"`
	ChatID int64  `json:"chat_id" yaml:"chat_id"`
}

// ReconnectConfig holds the websocket reconnect backoff parameters.
type ReconnectConfig struct {
	InitialDelay string `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     string `json:"max_delay"     yaml:"max_delay"`
}

// MinPollInterval is the enforced floor for the SLA poll period, so a low
// config value cannot hammer the SLA endpoint.
const MinPollInterval = 30 * time.Second

// PollInterval returns the SLA poll period with the floor applied.
func (c *AppConfig) PollInterval() time.Duration {
	d := time.Duration(c.ScannerPoolInterval) * time.Second
	if d < MinPollInterval {
		return MinPollInterval
	}
	return d
}

// InitialReconnectDelay returns the parsed backoff base, defaulting to 1s.
func (c *ReconnectConfig) InitialReconnectDelay() time.Duration {
	return parseDurationOr(c.InitialDelay, time.Second)
}

// MaxReconnectDelay returns the parsed backoff cap, defaulting to 60s.
func (c *ReconnectConfig) MaxReconnectDelay() time.Duration {
	return parseDurationOr(c.MaxDelay, 60*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
