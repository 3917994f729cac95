package expo_service

import (
	"fleet-push-service/models"
	"time"
)

// Config represents the configuration for Expo push service
type Config struct {
	// Authentication
	AccessToken string `yaml:"access_token" json:"access_token"` // Expo Access Token (required for production)

	// HTTP client settings
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`         // Request timeout
	MaxRetries int           `yaml:"max_retries" json:"max_retries"` // Maximum number of retries
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`   // Base delay for exponential backoff
	PushURL    string        `yaml:"push_url" json:"push_url"`       // Override for the push endpoint

	// Platform hints shared with the FCM transport
	Hints models.PlatformHints `yaml:"-" json:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:    DefaultTimeout,
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		PushURL:    PushURL,
		Hints:      models.DefaultPlatformHints(),
	}
}

// ApplyDefaults applies default values to missing configuration fields
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaults.BaseDelay
	}
	if c.PushURL == "" {
		c.PushURL = defaults.PushURL
	}
	if c.Hints.Priority != "normal" && c.Hints.Priority != "high" {
		c.Hints.Priority = defaults.Hints.Priority
	}
}
