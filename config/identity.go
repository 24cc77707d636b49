package config

import (
	"strings"
	"time"
)

// IdentityConfig configures the identity provider client. Base URL and API
// key have no defaults: without them every auth operation fails fast
// locally, before any network call.
type IdentityConfig struct {
	// BaseURL is the identity service origin, e.g. https://auth.example.com.
	BaseURL string `env:"BASE_URL"`

	// APIKey is the project API key attached to every request.
	APIKey string `env:"API_KEY"`

	// Timeout bounds each identity request. Timeouts are reported as
	// network failures.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to identity configuration.
func (c *IdentityConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
