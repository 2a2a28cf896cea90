package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnsearch/pkg/query"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, query.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, UnknownFieldsError, cfg.UnknownFields)
	assert.Equal(t, 50, cfg.Limit)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, ClientSecretFile, cfg.Gmail.SecretsFile)
	assert.Equal(t, TokenFile, cfg.Gmail.TokenFile)
	assert.Equal(t, slog.LevelInfo, cfg.Logging().Level)
	assert.False(t, cfg.Logging().JSON)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TXNSEARCH_STORE", "postgres")
	t.Setenv("TXNSEARCH_STORE_CONFIG", `{"host":"db"}`)
	t.Setenv("TXNSEARCH_MAX_DEPTH", "8")
	t.Setenv("TXNSEARCH_UNKNOWN_FIELDS", "text")
	t.Setenv("TXNSEARCH_LIMIT", "5")
	t.Setenv("TXNSEARCH_TIMEZONE", "Asia/Kolkata")
	t.Setenv("TXNSEARCH_LOG_LEVEL", "debug")
	t.Setenv("TXNSEARCH_LOG_FORMAT", "json")
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_DB", "ledger")
	t.Setenv("GMAIL_TOKEN_FILE", "/tmp/token.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store)
	assert.JSONEq(t, `{"host":"db"}`, string(cfg.StoreConfig))
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, UnknownFieldsText, cfg.UnknownFields)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, "ledger", cfg.Postgres.Database)
	assert.Equal(t, "/tmp/token.json", cfg.Gmail.TokenFile)
	assert.Equal(t, slog.LevelDebug, cfg.Logging().Level)
	assert.True(t, cfg.Logging().JSON)
}

func TestLoad_InvalidLogging(t *testing.T) {
	t.Setenv("TXNSEARCH_LOG_FORMAT", "xml")

	_, err := Load()
	assert.ErrorContains(t, err, "TXNSEARCH_LOG_FORMAT")
}

func TestLoad_InvalidUnknownFields(t *testing.T) {
	t.Setenv("TXNSEARCH_UNKNOWN_FIELDS", "ignore")

	_, err := Load()
	assert.ErrorContains(t, err, "TXNSEARCH_UNKNOWN_FIELDS")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("TXNSEARCH_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.ErrorContains(t, err, "TXNSEARCH_TIMEZONE")
}

func TestValidate_NegativeDepth(t *testing.T) {
	cfg := Config{MaxDepth: -1, Limit: 1, UnknownFields: UnknownFieldsError}
	assert.ErrorContains(t, cfg.Validate(), "TXNSEARCH_MAX_DEPTH")
}

func TestLoadSearches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.toml")
	content := `
[searches]
groceries = "category:groceries -merchant:swiggy"
big = "amount:>=10000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	searches, err := LoadSearches(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"groceries": "category:groceries -merchant:swiggy",
		"big":       "amount:>=10000",
	}, searches)
}

func TestLoadSearches_MissingFile(t *testing.T) {
	searches, err := LoadSearches(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Empty(t, searches)
}

func TestLoadSearches_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[searches\n"), 0o600))

	_, err := LoadSearches(path)
	assert.Error(t, err)
}
