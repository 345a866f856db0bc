package middleware

import (
	"fmt"
	"os"
)

// AuthConfig selects how the caller's user id is resolved.
// With Issuer set, bearer ID tokens are verified against the OIDC provider and
// the subject claim becomes the user id. Without it, UserHeader is trusted.
type AuthConfig struct {
	Issuer     string `toml:"issuer"`
	ClientID   string `toml:"client_id"`
	UserHeader string `toml:"user_header"`
}

// AuthEnv maps auth config fields to environment variable names for override injection.
type AuthEnv struct {
	Issuer     string
	ClientID   string
	UserHeader string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AuthConfig) Finalize(env *AuthEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AuthConfig) Merge(overlay *AuthConfig) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.UserHeader != "" {
		c.UserHeader = overlay.UserHeader
	}
}

// OIDC reports whether token verification is enabled.
func (c *AuthConfig) OIDC() bool {
	return c.Issuer != ""
}

func (c *AuthConfig) loadDefaults() {
	if c.UserHeader == "" {
		c.UserHeader = "X-User-Id"
	}
}

func (c *AuthConfig) loadEnv(env *AuthEnv) {
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.UserHeader != "" {
		if v := os.Getenv(env.UserHeader); v != "" {
			c.UserHeader = v
		}
	}
}

func (c *AuthConfig) validate() error {
	if c.Issuer != "" && c.ClientID == "" {
		return fmt.Errorf("client_id required when issuer is set")
	}
	return nil
}
