package config

import (
	"fmt"
	"net/url"
)

// Config is the full configuration surface of the cloud API, validated
// eagerly at startup so a misconfigured provider fails fast instead of on
// the first login.
type Config struct {
	// BaseURL is the externally reachable API base, used to construct the
	// fixed callback redirect URI registered with the provider
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:4000"`

	// AppURL is the externally reachable frontend base, used for the
	// default and already-adopted destinations
	AppURL string `env:"APP_URL" env-default:"http://localhost:3000"`

	// AuthProvider selects the single active identity provider
	AuthProvider string `env:"AUTH_PROVIDER" env-default:"google"`

	Google    GoogleConfig
	Authentik AuthentikConfig
	CloudDb   DbConfig
	Session   SessionConfig
}

// GoogleConfig contains the Google OAuth2 client credentials
type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

// AuthentikConfig contains the Authentik provider settings
type AuthentikConfig struct {
	Issuer       string `env:"AUTHENTIK_ISSUER"`
	ClientID     string `env:"AUTHENTIK_CLIENT_ID"`
	ClientSecret string `env:"AUTHENTIK_CLIENT_SECRET"`
	JWKSURL      string `env:"AUTHENTIK_JWKS_URL"`
}

// DbConfig contains the PostgreSQL connection settings
type DbConfig struct {
	Host     string `env:"CLOUD_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"CLOUD_PG_PORT" env-default:"5432"`
	Database string `env:"CLOUD_PG_DATABASE" env-default:"cloud_db"`
	User     string `env:"CLOUD_PG_USER" env-default:"cloud"`
	Password string `env:"CLOUD_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"CLOUD_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL builds the pgx connection string
func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// SessionConfig contains the session cookie settings
type SessionConfig struct {
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" env-default:"true"`
}

// RedirectURI returns the fixed callback URL registered with the provider
func (c *Config) RedirectURI() string {
	return c.BaseURL + "/oidc/callback"
}

// Validate checks that the selected provider's required fields are present
func (c *Config) Validate() error {
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return fmt.Errorf("invalid BASE_URL: %q", c.BaseURL)
	}
	if _, err := url.Parse(c.AppURL); err != nil || c.AppURL == "" {
		return fmt.Errorf("invalid APP_URL: %q", c.AppURL)
	}

	switch c.AuthProvider {
	case "google":
		if c.Google.ClientID == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID is required when using Google authentication")
		}
		if c.Google.ClientSecret == "" {
			return fmt.Errorf("GOOGLE_CLIENT_SECRET is required when using Google authentication")
		}
	case "authentik":
		if c.Authentik.Issuer == "" {
			return fmt.Errorf("AUTHENTIK_ISSUER is required when using Authentik authentication")
		}
		if c.Authentik.ClientID == "" {
			return fmt.Errorf("AUTHENTIK_CLIENT_ID is required when using Authentik authentication")
		}
		if c.Authentik.ClientSecret == "" {
			return fmt.Errorf("AUTHENTIK_CLIENT_SECRET is required when using Authentik authentication")
		}
	default:
		return fmt.Errorf("unsupported authentication provider: %s", c.AuthProvider)
	}

	return nil
}
