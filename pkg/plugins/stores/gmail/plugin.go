// Package gmail provides a plugin wrapper for the Gmail searcher.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/gmail"
)

// Plugin implements the StorePlugin interface for Gmail.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "gmail"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Search transaction alert emails in Gmail"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{gmailapi.GmailReadonlyScope}
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rules": map[string]any{
				"type":        "array",
				"description": "Transaction extraction rules",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":              map[string]any{"type": "string", "description": "Rule name for identification"},
						"query":             map[string]any{"type": "string", "description": "Gmail search query to match messages"},
						"amountRegex":       map[string]any{"type": "string", "description": "Regex pattern to extract amount"},
						"merchantInfoRegex": map[string]any{"type": "string", "description": "Regex pattern to extract merchant info"},
						"enabled":           map[string]any{"type": "boolean", "description": "Whether this rule is enabled"},
						"source":            map[string]any{"type": "string", "description": "Transaction source identifier"},
					},
					"required": []string{"query", "amountRegex", "merchantInfoRegex", "enabled", "source"},
				},
			},
			"labels": map[string]any{
				"type":        "object",
				"description": "Merchant to category/bucket mappings",
			},
			"requestsPerSecond": map[string]any{
				"type":        "number",
				"description": "Gmail API calls per second (default: 2)",
				"default":     2,
			},
			"burst": map[string]any{
				"type":        "integer",
				"description": "Gmail API calls allowed at once (default: 5)",
				"default":     5,
			},
		},
		"required": []string{"rules"},
	}
}

// Config represents the Gmail searcher configuration.
type Config struct {
	Rules             json.RawMessage `json:"rules"`
	Labels            json.RawMessage `json:"labels,omitempty"`
	RequestsPerSecond float64         `json:"requestsPerSecond,omitempty"`
	Burst             int             `json:"burst,omitempty"`
}

// NewStore creates a Gmail searcher authorised by httpClient.
func (p *Plugin) NewStore(ctx context.Context, httpClient *http.Client, configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("gmail requires an authorised http client")
	}

	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling gmail config: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("rules are required")
	}

	rules, err := gmail.ParseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	var labels api.Labels
	if len(cfg.Labels) > 0 {
		if labels, err = gmail.ParseLabels(cfg.Labels); err != nil {
			return nil, err
		}
	}

	return gmail.New(ctx, gmail.Config{
		Rules:             rules,
		Labels:            labels,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, logger, option.WithHTTPClient(httpClient))
}
