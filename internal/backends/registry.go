// Package backends provides a registry of store plugins.
package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

// StorePlugin defines the interface for transaction store plugins.
type StorePlugin interface {
	// Name returns the plugin name (e.g., "sqlite", "postgres").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// ConfigSchema returns a JSON schema describing the plugin's configuration.
	ConfigSchema() map[string]any
	// NewStore creates a store with the given config. httpClient is nil
	// unless RequiredScopes is non-empty.
	NewStore(ctx context.Context, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Store, error)
}

// Registry manages available store plugins.
type Registry struct {
	stores map[string]StorePlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]StorePlugin)}
}

// Register adds a plugin. Names are unique.
func (r *Registry) Register(plugin StorePlugin) error {
	name := plugin.Name()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store plugin %q already registered", name)
	}
	r.stores[name] = plugin
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (StorePlugin, error) {
	plugin, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store plugin %q not found", name)
	}
	return plugin, nil
}

// List returns all registered plugins ordered by name.
func (r *Registry) List() []StorePlugin {
	plugins := make([]StorePlugin, 0, len(r.stores))
	for _, plugin := range r.stores {
		plugins = append(plugins, plugin)
	}
	slices.SortFunc(plugins, func(a, b StorePlugin) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return plugins
}

// Scopes returns the OAuth scopes the named plugin needs.
func (r *Registry) Scopes(name string) ([]string, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return plugin.RequiredScopes(), nil
}

// Create creates a store instance from a plugin.
func (r *Registry) Create(ctx context.Context, name string, httpClient *http.Client, config json.RawMessage, logger *slog.Logger) (api.Store, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	store, err := plugin.NewStore(ctx, httpClient, config, logger)
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", name, err)
	}
	return store, nil
}
