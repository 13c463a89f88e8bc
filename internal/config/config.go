// Package config centralizes application configuration. All tunables are
// sourced from command-line flags with environment-variable fallbacks
// (12-factor friendly). Flags are defined first so that `-help` shows all
// available knobs and their defaults.
//
// Typical usage:
//
//	cfg := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg := config.LoadFromArgs(fs, getenv, []string{"-db_driver=memory"})
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config holds all process configuration derived from flags and
// environment variables. All fields are plain values so the struct can be
// safely copied after construction.
type Config struct {
	// IO controls input and diagnostic file locations.
	RecordsFile string // NDJSON records to ingest ("-" reads stdin).
	CatalogFile string // Register/schema catalog document (YAML or JSON).
	SkippedDir  string // Directory for invalid-record CSV dumps.

	// Ingestion context.
	Register     string // Default register applied to records lacking one.
	Schema       string // Default schema applied to records lacking one.
	Validate     bool   // Enforce required-property validation for all schemas.
	Owner        string // Default owner for records lacking one.
	Organisation string // Default organisation for records lacking one.

	// DB describes the target store. For MSSQL a full DSN is required;
	// for Postgres it can be built from the discrete parts.
	DBDriver   string // "postgres", "mssql", or "memory".
	DSN        string // Full DSN (required for mssql; optional for postgres).
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Env selects the logger profile ("production" or "development").
	Env string
}

// LoadFromArgs builds a Config by defining flags on fs, wiring each flag
// to an environment-variable fallback via getenv, and then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) *Config {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	fs.StringVar(&cfg.RecordsFile, "records_file", envOr("RECORDS_FILE", "records.ndjson"), "NDJSON records to ingest ('-' for stdin)")
	fs.StringVar(&cfg.CatalogFile, "catalog_file", envOr("CATALOG_FILE", "catalog.yaml"), "Register/schema catalog document (YAML or JSON)")
	fs.StringVar(&cfg.SkippedDir, "skipped_dir", envOr("SKIPPED_DIR", "./skipped"), "Directory for invalid-record CSV dumps")

	fs.StringVar(&cfg.Register, "register", getenv("REGISTER"), "Default register for records lacking one")
	fs.StringVar(&cfg.Schema, "schema", getenv("SCHEMA"), "Default schema for records lacking one")
	fs.BoolVar(&cfg.Validate, "validate", boolEnvOr("VALIDATE", false), "Enforce required-property validation for all schemas")
	fs.StringVar(&cfg.Owner, "owner", getenv("DEFAULT_OWNER"), "Default owner for records lacking one")
	fs.StringVar(&cfg.Organisation, "organisation", getenv("DEFAULT_ORGANISATION"), "Default organisation for records lacking one")

	fs.StringVar(&cfg.DBDriver, "db_driver", envOr("DB_DRIVER", "postgres"), "Store backend: 'postgres', 'mssql', or 'memory'")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN (required for mssql)")
	fs.StringVar(&cfg.DBUser, "db_user", envOr("DB_USER", "user"), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", envOr("DB_PASSWORD", "password"), "DB password")
	fs.StringVar(&cfg.DBHost, "db_host", envOr("DB_HOST", "localhost"), "DB host")
	fs.StringVar(&cfg.DBPort, "db_port", envOr("DB_PORT", "5432"), "DB port")
	fs.StringVar(&cfg.DBName, "db_name", envOr("DB_NAME", "objects"), "DB name")

	fs.StringVar(&cfg.Env, "env", envOr("APP_ENV", "production"), "Logger profile: 'production' or 'development'")

	if args == nil {
		args = []string{}
	}
	_ = fs.Parse(args)
	return cfg
}

// LoadFrom is a compatibility wrapper around LoadFromArgs for call-sites
// that don't need to pass args explicitly.
func LoadFrom(fs *flag.FlagSet, getenv func(string) string) *Config {
	return LoadFromArgs(fs, getenv, nil)
}

// Load is the production entry point: process flag set, real environment,
// real arguments.
func Load() *Config {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// PostgresDSN returns the explicit DSN when set, otherwise one built from
// the discrete connection parts.
func (c *Config) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
