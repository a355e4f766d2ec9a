package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/ronnia/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-u string   public base URL
//	-D string   database driver ("pgx" or "sqlite")
//	-d string   database DSN
//	-s string   token HMAC secret key
//	-l string   log level
//	-t duration provider call timeout (e.g., "10s")
//
// args are filtered with flagx.FilterArgs first so that -c/-config and
// anything else the server does not own are ignored.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-u", "-D", "-d", "-s", "-l", "-t"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.PublicURL, "u", config.PublicURL, "public base URL")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.ProviderTimeout, "t", config.ProviderTimeout, "provider call timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
