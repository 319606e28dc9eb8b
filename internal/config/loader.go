package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"mmhook/internal/mattermost"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the configuration.
//
//  1. Loads dotenv files. With no arguments a ".env" in the working
//     directory is loaded if present; explicitly named files must exist.
//     Variables already set in the environment are never overridden.
//  2. Processes envconfig tags to populate the Config struct.
//  3. Populates Config.Build from linker-injected variables.
//  4. Validates the struct, including the absurl tag.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, &ConfigError{
			Type:    ErrEnvFile,
			Message: "failed to load env file",
			Err:     err,
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs the struct validation rules on cfg.
func (c *Config) Validate() error {
	validate, err := newValidator()
	if err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return nil
}

// newValidator returns a validator with the absurl tag registered. absurl
// requires a scheme and a host, which the built-in url tag does not.
func newValidator() (*validator.Validate, error) {
	validate := validator.New()
	err := validate.RegisterValidation("absurl", func(fl validator.FieldLevel) bool {
		return mattermost.IsAbsoluteURI(fl.Field().String())
	})
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "failed to register validation rules",
			Err:     err,
		}
	}
	return validate, nil
}
