package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

func TestPlugin_NewStore(t *testing.T) {
	p := &Plugin{}
	assert.Equal(t, "sqlite", p.Name())
	assert.Empty(t, p.RequiredScopes())

	cfg, err := json.Marshal(Config{Path: filepath.Join(t.TempDir(), "txns.db"), FlushInterval: 5})
	require.NoError(t, err)

	s, err := p.NewStore(context.Background(), nil, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Search(context.Background(), query.Parse("swiggy"), api.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPlugin_InvalidConfig(t *testing.T) {
	p := &Plugin{}
	_, err := p.NewStore(context.Background(), nil, json.RawMessage(`{}`), nil)
	require.ErrorContains(t, err, "path is required")

	_, err = p.NewStore(context.Background(), nil, json.RawMessage(`[`), nil)
	require.Error(t, err)
}
