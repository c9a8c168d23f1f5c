package vicare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is the ViCare identity provider token endpoint.
const DefaultTokenURL = "https://iam.viessmann.com/idp/v3/token"

// ErrNoToken is returned when the token file holds no refresh token.
var ErrNoToken = errors.New("vicare: token file has no refresh token")

// tokenFile is the on-disk token representation. It is provisioned by an
// external authorization-code login and rewritten on every refresh.
type tokenFile struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// LoadToken reads a token file.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if strings.TrimSpace(tf.RefreshToken) == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{
		AccessToken:  tf.AccessToken,
		RefreshToken: tf.RefreshToken,
		TokenType:    tf.TokenType,
		Expiry:       tf.Expiry,
	}, nil
}

// SaveToken writes a token file with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir token dir: %w", err)
	}
	data, err := json.MarshalIndent(tokenFile{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// persistingSource writes refreshed tokens back to disk so a rotated
// refresh token survives a restart.
type persistingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &APIError{
				Kind:       kindForStatus(retrieveErr.Response.StatusCode, false),
				StatusCode: retrieveErr.Response.StatusCode,
				ErrorType:  retrieveErr.ErrorCode,
				Message:    "token refresh failed",
			}
		}
		return nil, &APIError{Kind: ErrConnection, Message: "token refresh failed", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// TokenSourceConfig configures NewTokenSource.
type TokenSourceConfig struct {
	ClientID  string
	TokenURL  string
	TokenFile string
	// HTTPClient is used for token refreshes. Defaults to a client with a
	// 15 second timeout.
	HTTPClient *http.Client
}

// NewTokenSource returns a refreshing token source seeded from the token
// file. Refreshed tokens are persisted to the same file.
func NewTokenSource(ctx context.Context, cfg TokenSourceConfig) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("vicare: client id is required")
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	conf := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	src := &persistingSource{
		base: conf.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
	}
	return oauth2.ReuseTokenSource(tok, src), nil
}
