package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/lectern/pkg/formatting"
	"github.com/JaimeStill/lectern/pkg/middleware"
	"github.com/JaimeStill/lectern/pkg/openapi"
	"github.com/JaimeStill/lectern/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "LECTERN_CORS_ENABLED",
	Origins:          "LECTERN_CORS_ORIGINS",
	AllowedMethods:   "LECTERN_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "LECTERN_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "LECTERN_CORS_EXPOSED_HEADERS",
	AllowCredentials: "LECTERN_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "LECTERN_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultLimit: "LECTERN_PAGINATION_DEFAULT_LIMIT",
	MaxLimit:     "LECTERN_PAGINATION_MAX_LIMIT",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "LECTERN_OPENAPI_TITLE",
	Description: "LECTERN_OPENAPI_DESCRIPTION",
}

var authEnv = &middleware.AuthEnv{
	Issuer:     "LECTERN_AUTH_ISSUER",
	ClientID:   "LECTERN_AUTH_CLIENT_ID",
	UserHeader: "LECTERN_AUTH_USER_HEADER",
}

// APIConfig holds API routing, CORS, auth, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	Auth          middleware.AuthConfig `toml:"auth"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 50 * 1024 * 1024 // 50MB fallback
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.Auth.Merge(&overlay.Auth)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("LECTERN_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("LECTERN_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
}
