package vicare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"valid", `{"refresh_token":"r1","access_token":"a1"}`, nil},
		{"empty refresh", `{"access_token":"a1"}`, ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			tok, err := LoadToken(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadToken: %v", err)
			}
			if tok.RefreshToken != "r1" {
				t.Errorf("RefreshToken = %q", tok.RefreshToken)
			}
		})
	}

	if _, err := LoadToken(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestTokenSource_RefreshPersistsRotatedToken(t *testing.T) {
	var grants []string
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		grants = append(grants, r.PostForm.Get("grant_type"))
		if got := r.PostForm.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh",
			"refresh_token": "rotated",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer idp.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(path, &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "original",
		Expiry:       time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	ts, err := NewTokenSource(context.Background(), TokenSourceConfig{
		ClientID:   "client-1",
		TokenURL:   idp.URL,
		TokenFile:  path,
		HTTPClient: idp.Client(),
	})
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}

	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "fresh" {
		t.Errorf("AccessToken = %q, want fresh", tok.AccessToken)
	}
	if len(grants) != 1 || grants[0] != "refresh_token" {
		t.Errorf("grants = %v", grants)
	}

	saved, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if saved.RefreshToken != "rotated" || saved.AccessToken != "fresh" {
		t.Errorf("saved token = %+v", saved)
	}

	// A valid token is reused without another refresh.
	if _, err := ts.Token(); err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 {
		t.Errorf("refreshed again: %v", grants)
	}
}

func TestTokenSource_RefreshRejected(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer idp.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(path, &oauth2.Token{RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	ts, err := NewTokenSource(context.Background(), TokenSourceConfig{
		ClientID: "c", TokenURL: idp.URL, TokenFile: path, HTTPClient: idp.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = ts.Token()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestNewTokenSource_RequiresClientID(t *testing.T) {
	if _, err := NewTokenSource(context.Background(), TokenSourceConfig{TokenFile: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
