package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "dsn only", cfg: Config{DSN: "postgres://localhost/txnsearch"}},
		{name: "fields", cfg: Config{Host: "localhost", Database: "txnsearch", User: "me"}},
		{name: "missing host", cfg: Config{Database: "txnsearch", User: "me"}, wantErr: "host is required"},
		{name: "missing database", cfg: Config{Host: "localhost", User: "me"}, wantErr: "database is required"},
		{name: "missing user", cfg: Config{Host: "localhost", Database: "txnsearch"}, wantErr: "user is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestPlugin_NewStoreRejectsConfig(t *testing.T) {
	p := &Plugin{}
	assert.Equal(t, "postgres", p.Name())

	_, err := p.NewStore(context.Background(), nil, json.RawMessage(`{"host": "localhost"}`), nil)
	require.ErrorContains(t, err, "database is required")

	_, err = p.NewStore(context.Background(), nil, json.RawMessage(`not json`), nil)
	require.Error(t, err)
}
