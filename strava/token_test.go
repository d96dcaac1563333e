package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRefresher_Refresh(t *testing.T) {
	// Arrange
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("refresh_token") != "old-refresh" {
			t.Errorf("refresh_token = %q", r.Form.Get("refresh_token"))
		}
		if r.Form.Get("client_id") != "123" || r.Form.Get("client_secret") != "shh" {
			t.Errorf("client credentials not sent in params: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","access_token":"new-access","refresh_token":"new-refresh","expires_at":1893456000,"expires_in":21600}`))
	}))
	defer srv.Close()
	refresher := NewTokenRefresher(srv.URL, srv.Client())

	// Act
	pair, err := refresher.Refresh(context.Background(), "123", "shh", "old-refresh")

	// Assert
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 token call, got %d", calls)
	}
	if pair.AccessToken != "new-access" || pair.RefreshToken != "new-refresh" {
		t.Errorf("pair = %+v", pair)
	}
	if !pair.ExpiresAt.Equal(time.Unix(1893456000, 0)) {
		t.Errorf("ExpiresAt = %v", pair.ExpiresAt)
	}
}

func TestTokenRefresher_KeepsRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","expires_in":3600}`))
	}))
	defer srv.Close()

	pair, err := NewTokenRefresher(srv.URL, srv.Client()).Refresh(context.Background(), "123", "shh", "old-refresh")

	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if pair.RefreshToken != "old-refresh" {
		t.Errorf("RefreshToken = %q, want old-refresh", pair.RefreshToken)
	}
}

func TestTokenRefresher_Rejected(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"RefreshToken","code":"invalid"}]}`))
	}))
	defer srv.Close()

	_, err := NewTokenRefresher(srv.URL, srv.Client()).Refresh(context.Background(), "123", "shh", "revoked")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestTokenRefresher_MissingInputs(t *testing.T) {
	_, err := NewTokenRefresher("http://127.0.0.1:0", nil).Refresh(context.Background(), "", "shh", "r")
	if err == nil {
		t.Error("expected error without client id")
	}
}
