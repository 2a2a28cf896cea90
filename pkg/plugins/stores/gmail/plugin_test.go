package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

const rules = `[{"name": "hdfc", "query": "from:alerts@hdfcbank.net", "amountRegex": "Rs\\.([\\d,.]+)",
"merchantInfoRegex": "at (\\w+)", "enabled": true, "source": "HDFC"}]`

func TestPlugin_NewStore(t *testing.T) {
	p := &Plugin{}
	assert.Equal(t, []string{gmailapi.GmailReadonlyScope}, p.RequiredScopes())

	cfg := json.RawMessage(`{"rules": ` + rules + `, "labels": {"SWIGGY": {"category": "Food", "bucket": "Want"}}}`)
	s, err := p.NewStore(context.Background(), http.DefaultClient, cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestPlugin_NewStoreErrors(t *testing.T) {
	p := &Plugin{}
	tests := []struct {
		name   string
		client *http.Client
		config string
		want   string
	}{
		{name: "no client", config: `{"rules": []}`, want: "authorised http client"},
		{name: "no rules", client: http.DefaultClient, config: `{}`, want: "rules are required"},
		{name: "bad rule", client: http.DefaultClient, config: `{"rules": [{"query": "x"}]}`, want: "enabled"},
		{name: "bad labels", client: http.DefaultClient, config: `{"rules": ` + rules + `, "labels": []}`, want: "labels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.NewStore(context.Background(), tt.client, json.RawMessage(tt.config), nil)
			require.ErrorContains(t, err, tt.want)
		})
	}
}
