// Package config defines the environment-driven configuration for
// sessionkit. Values are loaded with caarlos0/env; see bootstrap.LoadConfig.
package config

import (
	"os"
	"strings"
)

// AppConfig is the root configuration.
type AppConfig struct {
	// IsDev enables development conveniences (verbose logging).
	IsDev bool `env:"DEV" envDefault:"false"`

	// AppURL is this application's own origin, used as the default
	// redirect target for OAuth returns and password-reset emails.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:3000"`

	// Identity configures the identity provider client.
	Identity IdentityConfig `envPrefix:"IDENTITY_"`

	// Storage configures the durable session backend.
	Storage StorageConfig `envPrefix:"STORAGE_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment
// variables.
func (c *AppConfig) Sanitize() {
	c.AppURL = strings.TrimRight(strings.TrimSpace(c.AppURL), "/")
	c.Identity.Sanitize()
	c.Storage.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks NODE_ENV as a fallback (common in frontend
// tooling sharing the same .env).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
