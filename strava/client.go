package strava

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL  = "https://www.strava.com/api/v3"
	DefaultTokenURL = "https://www.strava.com/oauth/token"

	// MaxPerPage is the largest page size the activity listing accepts.
	MaxPerPage = 200
)

var (
	// ErrUnauthorized is matched by any 401 response.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is matched by any 404 response.
	ErrNotFound = errors.New("not found")
)

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d (%s %s)", e.StatusCode, e.Method, e.URL)
}

// Is lets errors.Is match ErrUnauthorized and ErrNotFound by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Options configures a Client. Zero values select the public Strava endpoints.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
	LogLevel   string
}

// Client talks to the Strava REST API with a bearer access token.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      *log.Logger
	logLevel    string
}

// New creates a new Strava client
func New(accessToken string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[strava] ", log.LstdFlags)
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		logger:      logger,
		logLevel:    opts.LogLevel,
	}
}

// SetAccessToken replaces the bearer token used for subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// shouldLog returns true if the given log level should be logged based on the configured log level
func (c *Client) shouldLog(level string) bool {
	levels := map[string]int{
		"trace": 0,
		"debug": 1,
		"info":  2,
		"warn":  3,
		"error": 4,
	}

	configuredLevel := c.logLevel
	if configuredLevel == "" {
		configuredLevel = "info"
	}

	return levels[level] >= levels[configuredLevel]
}

func (c *Client) logResponse(resp *http.Response, body []byte) {
	if !c.shouldLog("trace") {
		return
	}
	c.logger.Printf("Response Headers:")
	for k, v := range resp.Header {
		c.logger.Printf("  %s: %s", k, strings.Join(v, ", "))
	}
	if len(body) > 0 {
		preview := string(body)
		if len(preview) > 512 {
			preview = preview[:512]
		}
		c.logger.Printf("Response Body Preview: %s", preview)
	}
}

// doRequest performs an authenticated request and returns the body of a 2xx response.
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	if c.shouldLog("debug") {
		c.logger.Printf("Request: %s %s", req.Method, req.URL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if c.shouldLog("debug") {
		c.logger.Printf("Response: %s %s", resp.Status, req.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logResponse(resp, body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req)
}

// Athlete fetches the authenticated athlete. It is the cheapest authenticated
// call the API offers and doubles as the token liveness check.
func (c *Client) Athlete(ctx context.Context) (*Athlete, error) {
	body, err := c.get(ctx, "/athlete", nil)
	if err != nil {
		return nil, err
	}
	var athlete Athlete
	if err := json.Unmarshal(body, &athlete); err != nil {
		return nil, fmt.Errorf("failed to decode athlete: %w", err)
	}
	return &athlete, nil
}

// ListActivities fetches one page of the athlete's activities, newest first.
// Pages are 1-based.
func (c *Client) ListActivities(ctx context.Context, page, perPage int) ([]Activity, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	body, err := c.get(ctx, "/athlete/activities", query)
	if err != nil {
		return nil, err
	}
	var activities []Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities page %d: %w", page, err)
	}
	return activities, nil
}

// Gear fetches the detail record of a single piece of equipment.
func (c *Client) Gear(ctx context.Context, id string) (*Gear, error) {
	body, err := c.get(ctx, "/gear/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var gear Gear
	if err := json.Unmarshal(body, &gear); err != nil {
		return nil, fmt.Errorf("failed to decode gear %s: %w", id, err)
	}
	return &gear, nil
}
