package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// LocalhostAuthPort is the port the local server listens on to
	// capture the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

var ErrNoToken = errors.New("no OAuth token stored, run `taskflow auth` first")

// Files locates credentials on disk. ServiceAccountFile, when set, takes
// precedence over the installed-app flow.
type Files struct {
	CredentialsFile    string
	TokenFile          string
	ServiceAccountFile string
}

// GetConfig creates an oauth2.Config from the client secrets file and
// forces the redirect onto the local callback server.
func GetConfig(logger zerolog.Logger, credentialsFile string, scopes []string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", credentialsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	parsedURL, parseErr := url.Parse(config.RedirectURL)
	switch {
	case config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		logger.Info().Str("redirect_url", config.RedirectURL).Msg("overriding out-of-band redirect")
	case parseErr != nil:
		logger.Warn().Err(parseErr).Str("redirect_url", config.RedirectURL).Msg("could not parse redirect url, using it as is")
	case parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1":
		if parsedURL.Port() != LocalhostAuthPort {
			parsedURL.Host = net.JoinHostPort(parsedURL.Hostname(), LocalhostAuthPort)
			config.RedirectURL = parsedURL.String()
			logger.Debug().Str("redirect_url", config.RedirectURL).Msg("forcing localhost redirect port")
		}
	default:
		logger.Warn().Str("redirect_url", config.RedirectURL).Msg("redirect url is not a localhost callback")
	}

	return config, nil
}

// GetClient returns an authenticated client. It never starts the browser
// flow: without a service account or stored token it fails with
// ErrNoToken.
func GetClient(ctx context.Context, logger zerolog.Logger, files Files, scopes []string) (*http.Client, error) {
	if files.ServiceAccountFile != "" {
		return serviceAccountClient(ctx, files.ServiceAccountFile, scopes)
	}

	config, err := GetConfig(logger, files.CredentialsFile, scopes)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(files.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	src := &savingTokenSource{
		logger: logger,
		path:   files.TokenFile,
		last:   tok,
		base:   config.TokenSource(ctx, tok),
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// Authorize runs the browser flow, replacing any stored token.
func Authorize(ctx context.Context, logger zerolog.Logger, files Files, scopes []string) error {
	config, err := GetConfig(logger, files.CredentialsFile, scopes)
	if err != nil {
		return err
	}
	if err := os.Remove(files.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file '%s': %w", files.TokenFile, err)
	}
	tok, err := getTokenFromWeb(ctx, logger, config)
	if err != nil {
		return fmt.Errorf("failed to get token from web: %w", err)
	}
	return saveToken(files.TokenFile, tok)
}

func serviceAccountClient(ctx context.Context, path string, scopes []string) (*http.Client, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file %s: %w", path, err)
	}
	cfg, err := google.JWTConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account file: %w", err)
	}
	return cfg.Client(ctx), nil
}

// savingTokenSource writes the token back to disk whenever a refresh
// changes it.
type savingTokenSource struct {
	logger zerolog.Logger
	path   string
	base   oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("could not save refreshed token")
		} else {
			s.logger.Debug().Str("path", s.path).Msg("saved refreshed token")
		}
		s.last = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow through a local
// callback server.
func getTokenFromWeb(ctx context.Context, logger zerolog.Logger, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Shutdown(context.Background())

	go func() {
		logger.Info().Str("redirect_url", config.RedirectURL).Msg("listening for OAuth2 redirect")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()

	// Offline access is what makes Google return a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Please open the following URL in your browser to authorize taskflow:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
