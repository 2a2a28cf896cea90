// Package postgres provides a plugin wrapper for the PostgreSQL store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
	pgstore "github.com/ArionMiles/txnsearch/pkg/store/postgres"
)

// Plugin implements the StorePlugin interface for PostgreSQL.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "postgres"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Search transactions in a PostgreSQL database"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
// PostgreSQL doesn't require OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dsn": map[string]any{
				"type":        "string",
				"description": "Connection string; overrides the individual connection fields",
			},
			"host": map[string]any{
				"type":        "string",
				"description": "PostgreSQL host address",
				"default":     "localhost",
			},
			"port": map[string]any{
				"type":        "integer",
				"description": "PostgreSQL port",
				"default":     5432,
			},
			"database": map[string]any{
				"type":        "string",
				"description": "Database name",
				"default":     "txnsearch",
			},
			"user": map[string]any{
				"type":        "string",
				"description": "Database user",
			},
			"password": map[string]any{
				"type":        "string",
				"description": "Database password",
			},
			"sslmode": map[string]any{
				"type":        "string",
				"description": "SSL mode (disable, require, verify-ca, verify-full)",
				"default":     "disable",
				"enum":        []string{"disable", "require", "verify-ca", "verify-full"},
			},
			"batchSize": map[string]any{
				"type":        "integer",
				"description": "Number of transactions to buffer before writing (default: 10)",
				"default":     10,
			},
			"flushInterval": map[string]any{
				"type":        "integer",
				"description": "Interval in seconds between automatic flushes (default: 30)",
				"default":     30,
			},
			"maxPoolSize": map[string]any{
				"type":        "integer",
				"description": "Maximum number of connections in the pool (default: 10)",
				"default":     10,
			},
		},
	}
}

// Config represents the PostgreSQL store configuration.
type Config struct {
	DSN           string `json:"dsn,omitempty"`
	Host          string `json:"host"`
	Port          int    `json:"port,omitempty"`
	Database      string `json:"database"`
	User          string `json:"user"`
	Password      string `json:"password"`
	SSLMode       string `json:"sslmode,omitempty"`
	BatchSize     int    `json:"batchSize,omitempty"`
	FlushInterval int    `json:"flushInterval,omitempty"` // in seconds
	MaxPoolSize   int    `json:"maxPoolSize,omitempty"`
}

// Validate checks that a connection can be described.
func (c Config) Validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}

// NewStore connects to the database and applies migrations.
func (p *Plugin) NewStore(ctx context.Context, _ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling postgres config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return pgstore.New(ctx, pgstore.Config{
		DSN:           cfg.DSN,
		Host:          cfg.Host,
		Port:          cfg.Port,
		Database:      cfg.Database,
		User:          cfg.User,
		Password:      cfg.Password,
		SSLMode:       cfg.SSLMode,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Second,
		MaxPoolSize:   cfg.MaxPoolSize,
	}, logger)
}
