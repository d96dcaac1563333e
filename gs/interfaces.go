package gs

import (
	"context"
	"time"

	"github.com/roessland/gearsync/strava"
)

// StravaClient abstracts the Strava client for testing
type StravaClient interface {
	Athlete(ctx context.Context) (*strava.Athlete, error)
	ListActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error)
	Gear(ctx context.Context, id string) (*strava.Gear, error)
	SetAccessToken(token string)
}

// TokenRefresher exchanges a refresh token for a new token pair
type TokenRefresher interface {
	Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (strava.TokenPair, error)
}

// CredentialSaver persists a renewed credential
type CredentialSaver interface {
	SaveCredential(cred Credential) error
}

// Logger interface abstracts logging for testing
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Credential is the client identity plus the current token pair.
// ExpiresAt is informational only; a 401 is what marks a token as expired.
type Credential struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CanRefresh reports whether a refresh exchange can be attempted.
func (c Credential) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// GearFailure records a gear identifier that could not be resolved
type GearFailure struct {
	GearID string
	Err    error
}

// SyncResult represents the outcome of one sync cycle
type SyncResult struct {
	Summaries     []GearSummary
	Failures      []GearFailure
	Credential    Credential
	PagesFetched  int
	NewActivities int
	CachedGear    int
	StoppedEarly  bool
	LatestUpdate  time.Time // zero when no cached activity carries updated_at
}
