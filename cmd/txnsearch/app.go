package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/txnsearch/internal/backends"
	"github.com/ArionMiles/txnsearch/internal/search"
	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/client"
	"github.com/ArionMiles/txnsearch/pkg/config"
	gmailplugin "github.com/ArionMiles/txnsearch/pkg/plugins/stores/gmail"
	jsonplugin "github.com/ArionMiles/txnsearch/pkg/plugins/stores/jsonfile"
	postgresplugin "github.com/ArionMiles/txnsearch/pkg/plugins/stores/postgres"
	sqliteplugin "github.com/ArionMiles/txnsearch/pkg/plugins/stores/sqlite"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

// app carries what every command needs.
type app struct {
	cfg      config.Config
	registry *backends.Registry
	logger   *slog.Logger
	rules    []byte
	labels   []byte
	// httpClient authorises Google API calls. Replaced in tests.
	httpClient func(ctx context.Context, scopes []string) (*http.Client, error)
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	registry := backends.NewRegistry()
	for _, p := range []backends.StorePlugin{
		&sqliteplugin.Plugin{},
		&postgresplugin.Plugin{},
		&jsonplugin.Plugin{},
		&gmailplugin.Plugin{},
	} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		rules:    rulesInput,
		labels:   labelsInput,
	}
	a.httpClient = a.oauthClient
	return a, nil
}

func (a *app) oauthClient(ctx context.Context, scopes []string) (*http.Client, error) {
	return client.New(ctx, client.Config{
		SecretsFile: a.cfg.Gmail.SecretsFile,
		TokenFile:   a.cfg.Gmail.TokenFile,
		Interactive: true,
		Logger:      a.logger.With("component", "oauth"),
	}, scopes...)
}

// openStore creates the configured backend, building its config from the
// environment when TXNSEARCH_STORE_CONFIG is unset.
func (a *app) openStore(ctx context.Context) (api.Store, error) {
	name := a.cfg.Store
	storeCfg := a.cfg.StoreConfig
	if len(storeCfg) == 0 {
		var err error
		if storeCfg, err = a.defaultStoreConfig(name); err != nil {
			return nil, fmt.Errorf("building %s config: %w", name, err)
		}
	}

	scopes, err := a.registry.Scopes(name)
	if err != nil {
		return nil, err
	}

	var httpClient *http.Client
	if len(scopes) > 0 {
		a.logger.Debug("OAuth scopes required", "scopes", scopes)
		if httpClient, err = a.httpClient(ctx, scopes); err != nil {
			return nil, fmt.Errorf("creating http client: %w", err)
		}
	}

	return a.registry.Create(ctx, name, httpClient, storeCfg, a.logger.With("component", "store", "plugin", name))
}

func (a *app) defaultStoreConfig(name string) (json.RawMessage, error) {
	var cfg map[string]any
	switch name {
	case "sqlite":
		cfg = map[string]any{"path": a.cfg.SQLitePath}
	case "json":
		cfg = map[string]any{"filePath": a.cfg.JSONPath}
	case "postgres":
		pg := a.cfg.Postgres
		cfg = map[string]any{
			"host":     pg.Host,
			"port":     pg.Port,
			"database": pg.Database,
			"user":     pg.User,
			"password": pg.Password,
			"sslmode":  pg.SSLMode,
		}
	case "gmail":
		cfg = map[string]any{
			"rules":  json.RawMessage(a.rules),
			"labels": json.RawMessage(a.labels),
		}
	default:
		return nil, fmt.Errorf("no default config for store %q, set TXNSEARCH_STORE_CONFIG", name)
	}
	return json.Marshal(cfg)
}

func (a *app) parser() *query.Parser {
	return query.New(query.WithMaxDepth(a.cfg.MaxDepth))
}

func (a *app) service(store api.Store, strict bool) (*search.Service, error) {
	saved, err := config.LoadSearches(a.cfg.SearchesFile)
	if err != nil {
		return nil, err
	}
	return search.New(a.parser(), store, search.Config{
		UnknownFieldsAsText: a.cfg.UnknownFields == config.UnknownFieldsText,
		Strict:              strict,
		Limit:               a.cfg.Limit,
		Location:            a.cfg.Location(),
		Saved:               saved,
	}, a.logger.With("component", "search")), nil
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "txnsearch",
		Short:         "Search recorded transactions with a search-box query language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newGmailQueryCmd())
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newSavedCmd(a))
	rootCmd.AddCommand(newBackendsCmd(a))
	return rootCmd
}
