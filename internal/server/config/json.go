package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/ronnia/internal/flagx"
	"github.com/dmitrijs2005/ronnia/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// either "30m" style strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr       string `json:"http_addr"`
	PublicURL      string `json:"public_url"`
	DatabaseDriver string `json:"database_driver"`
	DatabaseDSN    string `json:"database_dsn"`
	SecretKey      string `json:"secret_key"`

	SignupTokenTTL  timex.Duration `json:"signup_token_ttl"`
	SessionTokenTTL timex.Duration `json:"session_token_ttl"`
	ProviderTimeout timex.Duration `json:"provider_timeout"`
	LinkTimeout     timex.Duration `json:"link_timeout"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`

	LogLevel string `json:"log_level"`

	Osu    JsonProvider `json:"osu"`
	Twitch JsonProvider `json:"twitch"`
}

type JsonProvider struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// parseJson overlays the file named by -c/-config (or $RONNIA_CONFIG).
// Keys missing from the file keep their current value.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)

	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.SignupTokenTTL, c.SignupTokenTTL)
	setDuration(&config.SessionTokenTTL, c.SessionTokenTTL)
	setDuration(&config.ProviderTimeout, c.ProviderTimeout)
	setDuration(&config.LinkTimeout, c.LinkTimeout)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	setString(&config.OsuClientID, c.Osu.ClientID)
	setString(&config.OsuClientSecret, c.Osu.ClientSecret)
	setString(&config.OsuRedirectURI, c.Osu.RedirectURI)
	setString(&config.TwitchClientID, c.Twitch.ClientID)
	setString(&config.TwitchClientSecret, c.Twitch.ClientSecret)
	setString(&config.TwitchRedirectURI, c.Twitch.RedirectURI)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
