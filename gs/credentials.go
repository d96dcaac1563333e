package gs

import (
	"context"
	"errors"
	"fmt"

	"github.com/roessland/gearsync/strava"
)

// CredentialManager validates and renews the Strava credential. It is the only
// component that produces a new Credential.
type CredentialManager struct {
	client    StravaClient
	refresher TokenRefresher
	saver     CredentialSaver
	logger    Logger
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(client StravaClient, refresher TokenRefresher, saver CredentialSaver, logger Logger) *CredentialManager {
	return &CredentialManager{
		client:    client,
		refresher: refresher,
		saver:     saver,
		logger:    logger,
	}
}

// EnsureValid checks the API with the access token and refreshes it on a 401.
// On return the client is configured with the returned credential's access token.
func (m *CredentialManager) EnsureValid(ctx context.Context, cred Credential) (Credential, error) {
	if cred.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: no access token configured", ErrCredentialInvalid)
	}

	m.logger.Debug("checking access token")
	m.client.SetAccessToken(cred.AccessToken)

	_, err := m.client.Athlete(ctx)
	if err == nil {
		m.logger.Info("using existing access token")
		return cred, nil
	}
	if !errors.Is(err, strava.ErrUnauthorized) {
		return Credential{}, fmt.Errorf("%w: token check: %w", ErrRemoteUnavailable, err)
	}

	if !cred.CanRefresh() {
		return Credential{}, fmt.Errorf("%w: access token rejected and no refresh token or client identity available", ErrCredentialInvalid)
	}

	m.logger.Info("access token expired, refreshing")
	pair, err := m.refresher.Refresh(ctx, cred.ClientID, cred.ClientSecret, cred.RefreshToken)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: refresh failed: %w", ErrCredentialInvalid, err)
	}

	renewed := cred
	renewed.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		renewed.RefreshToken = pair.RefreshToken
	}
	if !pair.ExpiresAt.IsZero() {
		renewed.ExpiresAt = pair.ExpiresAt
	}
	m.client.SetAccessToken(renewed.AccessToken)

	if m.saver != nil {
		if err := m.saver.SaveCredential(renewed); err != nil {
			m.logger.Warn("failed to persist refreshed credential", "error", err)
		}
	}

	m.logger.Info("access token refreshed", "expires_at", renewed.ExpiresAt)
	return renewed, nil
}
