package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenPair is the result of a successful refresh exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenRefresher exchanges a refresh token for a new access/refresh pair.
type TokenRefresher struct {
	tokenURL   string
	httpClient *http.Client
}

// NewTokenRefresher creates a refresher against tokenURL. An empty URL selects
// the public Strava token endpoint.
func NewTokenRefresher(tokenURL string, httpClient *http.Client) *TokenRefresher {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &TokenRefresher{tokenURL: tokenURL, httpClient: httpClient}
}

// Refresh performs a single refresh_token grant. It never retries.
func (r *TokenRefresher) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (TokenPair, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return TokenPair{}, errors.New("client id, client secret and refresh token are required")
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// An empty access token is never valid, so the source goes straight to the refresh grant.
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return TokenPair{}, fmt.Errorf("token refresh rejected: %w", &StatusError{
				Method:     http.MethodPost,
				URL:        r.tokenURL,
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
			})
		}
		return TokenPair{}, fmt.Errorf("token refresh failed: %w", err)
	}

	pair := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	// Strava reports an absolute expiry next to expires_in.
	if v, ok := tok.Extra("expires_at").(float64); ok && v > 0 {
		pair.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	return pair, nil
}
