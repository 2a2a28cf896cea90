package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

func TestPlugin_NewStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txns.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"amount": 12, "merchant_info": "Swiggy", "timestamp": "2024-01-01T00:00:00Z"}]`), 0o600))

	p := &Plugin{}
	assert.Equal(t, "json", p.Name())

	cfg, err := json.Marshal(Config{FilePath: path})
	require.NoError(t, err)
	s, err := p.NewStore(context.Background(), nil, cfg, nil)
	require.NoError(t, err)

	got, err := s.Search(context.Background(), query.Parse("merchant:swig"), api.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12.0, got[0].Amount)
}

func TestPlugin_MissingPath(t *testing.T) {
	_, err := (&Plugin{}).NewStore(context.Background(), nil, json.RawMessage(`{}`), nil)
	require.ErrorContains(t, err, "filePath is required")
}
