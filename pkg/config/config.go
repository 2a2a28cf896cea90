// Package config loads txnsearch configuration from environment variables
// and saved searches from a TOML file.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/logging"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// TokenFile is the default path to the stored Google OAuth token.
const TokenFile = "data/token.json"

// Unknown field policies for TXNSEARCH_UNKNOWN_FIELDS.
const (
	UnknownFieldsError = "error"
	UnknownFieldsText  = "text"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Store is the name of the store backend to search.
	// Environment variable: TXNSEARCH_STORE
	Store string `koanf:"TXNSEARCH_STORE"`

	// StoreConfig is the JSON configuration for the store backend. When empty
	// it is built from the backend specific variables below.
	// Environment variable: TXNSEARCH_STORE_CONFIG
	StoreConfig json.RawMessage `koanf:"TXNSEARCH_STORE_CONFIG"`

	// MaxDepth limits parenthesis nesting in queries.
	// Environment variable: TXNSEARCH_MAX_DEPTH
	MaxDepth int `koanf:"TXNSEARCH_MAX_DEPTH"`

	// UnknownFields is "error" to reject unknown query fields or "text" to
	// search them as free text.
	// Environment variable: TXNSEARCH_UNKNOWN_FIELDS
	UnknownFields string `koanf:"TXNSEARCH_UNKNOWN_FIELDS"`

	// Timezone is the IANA zone date values in queries are read in.
	// Environment variable: TXNSEARCH_TIMEZONE
	Timezone string `koanf:"TXNSEARCH_TIMEZONE"`

	// Limit is the default number of search results.
	// Environment variable: TXNSEARCH_LIMIT
	Limit int `koanf:"TXNSEARCH_LIMIT"`

	// SearchesFile is the TOML file holding saved searches.
	// Environment variable: TXNSEARCH_SEARCHES_FILE
	SearchesFile string `koanf:"TXNSEARCH_SEARCHES_FILE"`

	// LogLevel is DEBUG, INFO, WARN or ERROR.
	// Environment variable: TXNSEARCH_LOG_LEVEL
	LogLevel string `koanf:"TXNSEARCH_LOG_LEVEL"`

	// LogFormat is "text" or "json".
	// Environment variable: TXNSEARCH_LOG_FORMAT
	LogFormat string `koanf:"TXNSEARCH_LOG_FORMAT"`

	// SQLitePath is the database file used by the sqlite backend.
	// Environment variable: SQLITE_PATH
	SQLitePath string `koanf:"SQLITE_PATH"`

	// JSONPath is the file used by the json backend.
	// Environment variable: JSON_PATH
	JSONPath string `koanf:"JSON_PATH"`

	// PostgreSQL configuration (used by the postgres backend)
	Postgres PostgresConfig `koanf:",squash"`

	// Gmail configuration (used by the gmail backend)
	Gmail GmailConfig `koanf:",squash"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// GmailConfig holds the Google OAuth file locations.
type GmailConfig struct {
	SecretsFile string `koanf:"GMAIL_SECRETS_FILE"`
	TokenFile   string `koanf:"GMAIL_TOKEN_FILE"`
}

// Load reads the configuration from the environment, fills in defaults and
// validates the result.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Store == "" {
		c.Store = "sqlite"
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = query.DefaultMaxDepth
	}
	if c.UnknownFields == "" {
		c.UnknownFields = UnknownFieldsError
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Limit == 0 {
		c.Limit = api.DefaultLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}
	if c.SearchesFile == "" {
		c.SearchesFile = "searches.toml"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/transactions.db"
	}
	if c.JSONPath == "" {
		c.JSONPath = "data/transactions.json"
	}
	if c.Gmail.SecretsFile == "" {
		c.Gmail.SecretsFile = ClientSecretFile
	}
	if c.Gmail.TokenFile == "" {
		c.Gmail.TokenFile = TokenFile
	}
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("TXNSEARCH_MAX_DEPTH must be positive, got %d", c.MaxDepth)
	}
	if c.Limit < 1 {
		return fmt.Errorf("TXNSEARCH_LIMIT must be positive, got %d", c.Limit)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TXNSEARCH_TIMEZONE: %w", err)
	}
	if _, err := logging.NewConfig(c.LogLevel, c.LogFormat); err != nil {
		return fmt.Errorf("TXNSEARCH_LOG_LEVEL/TXNSEARCH_LOG_FORMAT: %w", err)
	}
	switch c.UnknownFields {
	case UnknownFieldsError, UnknownFieldsText:
	default:
		return fmt.Errorf("TXNSEARCH_UNKNOWN_FIELDS must be %q or %q, got %q",
			UnknownFieldsError, UnknownFieldsText, c.UnknownFields)
	}
	return nil
}

// Location returns the configured zone, or UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Logging returns the logger configuration. Load has already validated the
// level and format, so an invalid pair only occurs for a hand-built Config
// and falls back to INFO text output.
func (c Config) Logging() logging.Config {
	cfg, err := logging.NewConfig(c.LogLevel, c.LogFormat)
	if err != nil {
		return logging.Config{Level: slog.LevelInfo}
	}
	return cfg
}

// LoadSearches reads saved searches from the [searches] table of a TOML file:
//
//	[searches]
//	groceries = "category:groceries -merchant:swiggy"
//	big = "amount:>=10000"
//
// A missing file yields no searches. Names must not contain dots.
func LoadSearches(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("loading saved searches from %s: %w", path, err)
	}

	return k.StringMap("searches"), nil
}
