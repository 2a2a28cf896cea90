package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const secretJSON = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",
"redirect_uris":["http://localhost"]}}`

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}

	require.NoError(t, SaveToken(path, tok))

	loaded, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, loaded.AccessToken)
	assert.Equal(t, tok.RefreshToken, loaded.RefreshToken)
	assert.True(t, tok.Expiry.Equal(loaded.Expiry))
}

func TestNewFromJSON_CachedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)}))

	c, err := NewFromJSON(context.Background(), []byte(secretJSON), Config{TokenFile: path}, "scope")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewFromJSON_NoTokenNotInteractive(t *testing.T) {
	_, err := NewFromJSON(context.Background(), []byte(secretJSON),
		Config{TokenFile: filepath.Join(t.TempDir(), "missing.json")}, "scope")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestNewFromJSON_BadSecret(t *testing.T) {
	_, err := NewFromJSON(context.Background(), []byte("{}"), Config{}, "scope")
	require.Error(t, err)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
	}{
		{name: "success", query: "?state=s&code=abc", wantCode: "abc"},
		{name: "bad state", query: "?state=x&code=abc", wantErr: true},
		{name: "provider error", query: "?state=s&error=access_denied", wantErr: true},
		{name: "missing code", query: "?state=s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)
			rec := httptest.NewRecorder()

			callbackHandler("s", codeChan, errChan)(rec, httptest.NewRequest(http.MethodGet, callbackPath+tt.query, nil))

			if tt.wantErr {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Error(t, <-errChan)
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantCode, <-codeChan)
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)
	b, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44)
}
