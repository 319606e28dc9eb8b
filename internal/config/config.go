// Package config defines the process configuration for the mmhook CLI and
// relay. Values come from the OS environment, optionally seeded from a
// dotenv file, and are validated once at startup (fail fast).
package config

import (
	"time"

	"mmhook/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration. Sub-components receive only the
// subset they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Mattermost MattermostConfig
	Webhook    WebhookConfig
	Server     ServerConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// MattermostConfig identifies the incoming webhook and the sender defaults
// applied to messages that leave them unset.
type MattermostConfig struct {
	// WebhookURL embeds the hook key, so it is kept redacted.
	WebhookURL SecretString `envconfig:"MATTERMOST_WEBHOOK_URL" validate:"omitempty,absurl"`
	Username   string       `envconfig:"MATTERMOST_USERNAME"`
	Channel    string       `envconfig:"MATTERMOST_CHANNEL"`
	IconURL    string       `envconfig:"MATTERMOST_ICON_URL" validate:"omitempty,absurl"`
}

// Destination returns the webhook URL, or a missing-field error when none is configured.
func (c MattermostConfig) Destination() (string, error) {
	if c.WebhookURL.IsZero() {
		return "", types.NewFieldError(
			types.ErrCodeValidationMissingField,
			"MATTERMOST_WEBHOOK_URL",
			"no incoming webhook URL configured",
		)
	}
	return c.WebhookURL.Unmask(), nil
}

// WebhookConfig holds settings for outbound webhook delivery.
type WebhookConfig struct {
	UserAgent      string        `envconfig:"WEBHOOK_USER_AGENT" default:"mmhook/1.0"`
	DefaultTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRedirects   int           `envconfig:"WEBHOOK_MAX_REDIRECTS" default:"3" validate:"gte=0"`
	// AllowPrivate disables SSRF filtering for self-hosted servers on private networks.
	AllowPrivate bool `envconfig:"WEBHOOK_ALLOW_PRIVATE" default:"false"`
}

// ServerConfig holds relay HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrEnvFile indicates an explicitly requested dotenv file could not be read.
	ErrEnvFile ConfigErrorType = "ENV_FILE_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
