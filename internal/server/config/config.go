// Package config handles configuration for the server component:
// defaults, an optional JSON file, RONNIA_* environment variables and
// command-line flags, applied in that order.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/server/models"
)

// Config holds runtime settings for the ronnia web server.
//
// Fields:
//   - HTTPAddr: bind address of the HTTP listener.
//   - PublicURL: externally visible base URL, used to derive OAuth redirect URIs.
//   - DatabaseDriver / DatabaseDSN: "pgx" (PostgreSQL) or "sqlite", and its DSN.
//   - SecretKey: HMAC secret for signup and session tokens (HS256).
//   - SignupTokenTTL / SessionTokenTTL: token lifetimes.
//   - ProviderTimeout: bound on every outbound call to osu! or Twitch.
//   - LinkTimeout: bound on a login once its code has been exchanged.
//   - ShutdownTimeout: grace period for in-flight requests on shutdown.
//   - LogLevel: debug, info, warn or error.
//   - Osu* / Twitch*: OAuth application credentials per provider.
type Config struct {
	HTTPAddr       string `env:"RONNIA_HTTP_ADDR"`
	PublicURL      string `env:"RONNIA_PUBLIC_URL"`
	DatabaseDriver string `env:"RONNIA_DB_DRIVER"`
	DatabaseDSN    string `env:"RONNIA_DB_DSN"`
	SecretKey      string `env:"RONNIA_SECRET_KEY"`

	SignupTokenTTL  time.Duration `env:"RONNIA_SIGNUP_TOKEN_TTL"`
	SessionTokenTTL time.Duration `env:"RONNIA_SESSION_TOKEN_TTL"`
	ProviderTimeout time.Duration `env:"RONNIA_PROVIDER_TIMEOUT"`
	LinkTimeout     time.Duration `env:"RONNIA_LINK_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"RONNIA_SHUTDOWN_TIMEOUT"`

	LogLevel string `env:"RONNIA_LOG_LEVEL"`

	OsuClientID        string `env:"RONNIA_OSU_CLIENT_ID"`
	OsuClientSecret    string `env:"RONNIA_OSU_CLIENT_SECRET"`
	OsuRedirectURI     string `env:"RONNIA_OSU_REDIRECT_URI"`
	TwitchClientID     string `env:"RONNIA_TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"RONNIA_TWITCH_CLIENT_SECRET"`
	TwitchRedirectURI  string `env:"RONNIA_TWITCH_REDIRECT_URI"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.PublicURL = "http://localhost:8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:ronnia.db?_pragma=foreign_keys(1)"
	c.SecretKey = "secretKey"
	c.SignupTokenTTL = 30 * time.Minute
	c.SessionTokenTTL = 365 * 24 * time.Hour
	c.ProviderTimeout = 10 * time.Second
	c.LinkTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config from defaults, then the JSON file, then the
// environment, then command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	args := os.Args[1:]
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.fillRedirectURIs()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RedirectURI returns the OAuth callback URL registered for p.
func (c *Config) RedirectURI(p models.Provider) string {
	if p == models.ProviderTwitch {
		return c.TwitchRedirectURI
	}
	return c.OsuRedirectURI
}

func (c *Config) fillRedirectURIs() {
	base := strings.TrimRight(c.PublicURL, "/")
	if c.OsuRedirectURI == "" {
		c.OsuRedirectURI = base + "/oauth2/osu/callback"
	}
	if c.TwitchRedirectURI == "" {
		c.TwitchRedirectURI = base + "/oauth2/twitch/callback"
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.SignupTokenTTL <= 0 || c.SessionTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	return errors.Join(errs...)
}
