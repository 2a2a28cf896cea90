// Package client provides OAuth2 client setup for Google APIs.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// callbackPath is the path for the OAuth callback.
	callbackPath = "/callback"
	// serverTimeout is how long to wait for the OAuth callback.
	serverTimeout = 5 * time.Minute
)

// Config locates the OAuth files and controls the consent flow.
type Config struct {
	// SecretsFile is the Google OAuth client secret JSON.
	SecretsFile string
	// TokenFile caches the user's token between runs.
	TokenFile string
	// CallbackPort is the local port the consent redirect is received on.
	// Defaults to 8085.
	CallbackPort int
	// Interactive allows opening a browser when no token is cached. When
	// false a missing token is an error.
	Interactive bool
	// Prompt receives instructions for the user during the consent flow.
	// Defaults to os.Stderr.
	Prompt io.Writer
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.CallbackPort == 0 {
		c.CallbackPort = 8085
	}
	if c.Prompt == nil {
		c.Prompt = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ErrNoToken is returned when no token is cached and the flow is not interactive.
var ErrNoToken = errors.New("no oauth token")

// New creates an HTTP client authorised for the given scopes.
func New(ctx context.Context, cfg Config, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(cfg.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	return NewFromJSON(ctx, b, cfg, scope...)
}

// NewFromJSON creates an HTTP client from client secret JSON content.
func NewFromJSON(ctx context.Context, secretJSON []byte, cfg Config, scope ...string) (*http.Client, error) {
	cfg.setDefaults()

	oauthConfig, err := google.ConfigFromJSON(secretJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	tok, err := TokenFromFile(cfg.TokenFile)
	if err != nil {
		if !cfg.Interactive {
			return nil, fmt.Errorf("%w in %s: %w", ErrNoToken, cfg.TokenFile, err)
		}
		cfg.Logger.Info("no existing token found, initiating OAuth flow")
		tok, err = getTokenFromWeb(ctx, oauthConfig, cfg)
		if err != nil {
			return nil, err
		}
		if err := SaveToken(cfg.TokenFile, tok); err != nil {
			cfg.Logger.Error("failed to save token", "error", err)
		}
	}
	return oauthConfig.Client(ctx, tok), nil
}

func getTokenFromWeb(ctx context.Context, oauthConfig *oauth2.Config, cfg Config) (*oauth2.Token, error) {
	oauthConfig.RedirectURL = fmt.Sprintf("http://localhost:%d%s", cfg.CallbackPort, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startCallbackServer(ctx, cfg, state, codeChan, errChan)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			cfg.Logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

	fmt.Fprintf(cfg.Prompt, "\nOpening browser for Google authentication...\n")
	fmt.Fprintf(cfg.Prompt, "If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)

	if err := openBrowser(ctx, authURL); err != nil {
		cfg.Logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := oauthConfig.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		fmt.Fprintln(cfg.Prompt, "Authentication successful!")
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(serverTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", serverTimeout)
	}
}

// callbackHandler receives the consent redirect and forwards the code or error.
func callbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		if errMsg := q.Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, fmt.Sprintf("Authentication failed: %s", errMsg), http.StatusBadRequest)
			return
		}

		code := q.Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>Authentication Successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

		codeChan <- code
	}
}

func startCallbackServer(ctx context.Context, cfg Config, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, callbackHandler(expectedState, codeChan, errChan))

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", cfg.CallbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", cfg.CallbackPort, err)
	}

	go func() {
		cfg.Logger.Debug("starting OAuth callback server", "port", cfg.CallbackPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.Logger.Error("callback server error", "error", err)
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	return server, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// TokenFromFile retrieves a token from a local file.
func TokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
