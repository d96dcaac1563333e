package gs

import (
	"context"
	"sync"
	"time"

	"github.com/roessland/gearsync/strava"
)

// MockStravaClient implements StravaClient for testing
type MockStravaClient struct {
	mu sync.Mutex

	// ValidTokens lists access tokens the validity check accepts. Nil accepts any token.
	ValidTokens  []string
	AthleteError error
	// Pages[i] is served for page i+1; pages past the end are empty.
	Pages     [][]strava.Activity
	PageError map[int]error
	GearByID  map[string]strava.Gear
	GearError map[string]error
	// GearDelay holds gear fetches open long enough for concurrent callers to pile up.
	GearDelay time.Duration

	AccessToken    string
	TokensSeen     []string
	AthleteCalls   int
	PageRequests   []int
	PerPageSeen    []int
	GearCalls      map[string]int
	GearTokensSeen []string
}

func NewMockStravaClient() *MockStravaClient {
	return &MockStravaClient{
		GearByID:  make(map[string]strava.Gear),
		GearError: make(map[string]error),
		PageError: make(map[int]error),
		GearCalls: make(map[string]int),
	}
}

func (m *MockStravaClient) SetAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccessToken = token
	m.TokensSeen = append(m.TokensSeen, token)
}

func (m *MockStravaClient) Athlete(ctx context.Context) (*strava.Athlete, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AthleteCalls++
	if m.AthleteError != nil {
		return nil, m.AthleteError
	}
	if m.ValidTokens != nil && !contains(m.ValidTokens, m.AccessToken) {
		return nil, unauthorized()
	}
	return &strava.Athlete{ID: 1, Username: "runner"}, nil
}

func (m *MockStravaClient) ListActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PageRequests = append(m.PageRequests, page)
	m.PerPageSeen = append(m.PerPageSeen, perPage)
	if err, ok := m.PageError[page]; ok {
		return nil, err
	}
	if page < 1 || page > len(m.Pages) {
		return nil, nil
	}
	return m.Pages[page-1], nil
}

func (m *MockStravaClient) Gear(ctx context.Context, id string) (*strava.Gear, error) {
	m.mu.Lock()
	m.GearCalls[id]++
	m.GearTokensSeen = append(m.GearTokensSeen, m.AccessToken)
	err, hasErr := m.GearError[id]
	g, hasGear := m.GearByID[id]
	delay := m.GearDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hasErr {
		return nil, err
	}
	if !hasGear {
		return nil, notFound()
	}
	return &g, nil
}

func (m *MockStravaClient) gearCallCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GearCalls[id]
}

func (m *MockStravaClient) totalGearCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.GearCalls {
		total += n
	}
	return total
}

// MockRefresher implements TokenRefresher for testing
type MockRefresher struct {
	Pair  strava.TokenPair
	Error error
	Calls []RefreshCall
}

type RefreshCall struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (m *MockRefresher) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (strava.TokenPair, error) {
	m.Calls = append(m.Calls, RefreshCall{ClientID: clientID, ClientSecret: clientSecret, RefreshToken: refreshToken})
	if m.Error != nil {
		return strava.TokenPair{}, m.Error
	}
	return m.Pair, nil
}

// MockSaver implements CredentialSaver for testing
type MockSaver struct {
	Saved []Credential
	Error error
}

func (m *MockSaver) SaveCredential(cred Credential) error {
	m.Saved = append(m.Saved, cred)
	return m.Error
}

// MockLogger implements Logger for testing. Safe for concurrent use.
type MockLogger struct {
	mu         sync.Mutex
	InfoCalls  []LogCall
	DebugCalls []LogCall
	WarnCalls  []LogCall
}

type LogCall struct {
	Message string
	Args    []any
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls = append(m.InfoCalls, LogCall{Message: msg, Args: args})
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DebugCalls = append(m.DebugCalls, LogCall{Message: msg, Args: args})
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarnCalls = append(m.WarnCalls, LogCall{Message: msg, Args: args})
}

func (m *MockLogger) hasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.InfoCalls {
		if call.Message == msg {
			return true
		}
	}
	return false
}

func unauthorized() error {
	return &strava.StatusError{Method: "GET", URL: "https://example.invalid", StatusCode: 401, Body: "Authorization Error"}
}

func notFound() error {
	return &strava.StatusError{Method: "GET", URL: "https://example.invalid", StatusCode: 404, Body: "Record Not Found"}
}

func serverError() error {
	return &strava.StatusError{Method: "GET", URL: "https://example.invalid", StatusCode: 500, Body: "boom"}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// activity builds a listing item
func activity(id int64, gearID string) strava.Activity {
	return strava.Activity{
		ID:        id,
		GearID:    gearID,
		UpdatedAt: time.Unix(1700000000+id, 0).UTC(),
	}
}

func shoe(id, name string, meters float64) strava.Gear {
	return strava.Gear{ID: id, Name: name, Distance: meters, ResourceState: 3}
}

func bike(id, name string, meters float64) strava.Gear {
	frame := 3
	return strava.Gear{ID: id, Name: name, Distance: meters, FrameType: &frame, ResourceState: 3}
}

// pagesOf splits activities into listing pages of size n.
func pagesOf(n int, items []strava.Activity) [][]strava.Activity {
	var pages [][]strava.Activity
	for len(items) > 0 {
		k := n
		if len(items) < k {
			k = len(items)
		}
		pages = append(pages, items[:k])
		items = items[k:]
	}
	return pages
}

func numbered(from, to int64, gearFor func(int64) string) []strava.Activity {
	var out []strava.Activity
	for id := to; id >= from; id-- {
		out = append(out, activity(id, gearFor(id)))
	}
	return out
}
