// Package sqlite provides a plugin wrapper for the SQLite store.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
	sqlitestore "github.com/ArionMiles/txnsearch/pkg/store/sqlite"
)

// Plugin implements the StorePlugin interface for SQLite.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sqlite"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Search transactions in a local SQLite database"
}

// RequiredScopes returns no scopes; the database is local.
func (p *Plugin) RequiredScopes() []string {
	return []string{}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Database file, or :memory:",
				"default":     "data/transactions.db",
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
		},
		"required": []string{"path"},
	}
}

// Config represents the SQLite store configuration.
type Config struct {
	Path          string `json:"path"`
	BatchSize     int    `json:"batchSize,omitempty"`
	FlushInterval int    `json:"flushInterval,omitempty"` // in seconds
}

// NewStore opens the database.
func (p *Plugin) NewStore(_ context.Context, _ *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling sqlite config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	return sqlitestore.New(sqlitestore.Config{
		Path:          cfg.Path,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Second,
	}, logger)
}
