package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

// Client is the main Supabase client.
type Client struct {
	config     Config
	httpClient *http.Client

	// Derived values
	baseURL     string
	restURL     string
	authURL     string
	storageURL  string
	realtimeURL string

	// Sub-clients
	auth     *AuthClient
	database *DatabaseClient
	storage  *StorageClient
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("anon key is required")
	}

	baseURL := strings.TrimRight(cfg.ProjectURL, "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid project URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid project URL: %q", cfg.ProjectURL)
	}
	if parsedURL.User != nil {
		return nil, fmt.Errorf("project URL must not include user info")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Retry != nil {
		wrapped := *httpClient
		wrapped.Transport = newRetryTransport(httpClient.Transport, cfg.Retry)
		httpClient = &wrapped
	}

	wsBase := baseURL
	switch parsedURL.Scheme {
	case "https":
		wsBase = "wss" + strings.TrimPrefix(baseURL, "https")
	case "http":
		wsBase = "ws" + strings.TrimPrefix(baseURL, "http")
	}

	c := &Client{
		config:      cfg,
		httpClient:  httpClient,
		baseURL:     baseURL,
		restURL:     baseURL + "/rest/v1",
		authURL:     baseURL + "/auth/v1",
		storageURL:  baseURL + "/storage/v1",
		realtimeURL: wsBase + "/realtime/v1/websocket",
	}

	c.auth = &AuthClient{client: c}
	c.database = &DatabaseClient{client: c}
	c.storage = &StorageClient{client: c}

	return c, nil
}

// Auth returns the auth client.
func (c *Client) Auth() *AuthClient {
	return c.auth
}

// Database returns the database client.
func (c *Client) Database() *DatabaseClient {
	return c.database
}

// From is shorthand for Database().From(table).
func (c *Client) From(table string) *QueryBuilder {
	return c.database.From(table)
}

// Storage returns the storage client.
func (c *Client) Storage() *StorageClient {
	return c.storage
}

// Realtime returns a new realtime client bound to this project.
func (c *Client) Realtime() *RealtimeClient {
	return NewRealtimeClient(c.realtimeURL, c.config.AnonKey)
}

// ServiceRealtime returns a realtime client authenticated with the service
// role key, for server side subscriptions to tables hidden by row level
// security.
func (c *Client) ServiceRealtime() (*RealtimeClient, error) {
	if c.config.ServiceKey == "" {
		return nil, fmt.Errorf("service key is required for service realtime")
	}
	rt := NewRealtimeClient(c.realtimeURL, c.config.ServiceKey)
	rt.SetAccessToken(c.config.ServiceKey)
	return rt, nil
}

// HasServiceKey reports whether operator calls that bypass RLS are possible.
func (c *Client) HasServiceKey() bool {
	return c.config.ServiceKey != ""
}

// =============================================================================
// Internal HTTP Methods
// =============================================================================

// request performs an HTTP request with the anon key.
func (c *Client) request(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) ([]byte, int, error) {
	return c.do(ctx, method, urlStr, body, headers, c.config.AnonKey, c.config.AnonKey)
}

// requestWithServiceKey performs an HTTP request with the service role key.
func (c *Client) requestWithServiceKey(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) ([]byte, int, error) {
	if c.config.ServiceKey == "" {
		return nil, 0, fmt.Errorf("service key not configured")
	}
	return c.do(ctx, method, urlStr, body, headers, c.config.ServiceKey, c.config.ServiceKey)
}

// requestWithToken performs an HTTP request with a user's access token.
func (c *Client) requestWithToken(ctx context.Context, method, urlStr string, body []byte, headers map[string]string, accessToken string) ([]byte, int, error) {
	return c.do(ctx, method, urlStr, body, headers, c.config.AnonKey, accessToken)
}

func (c *Client) do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string, apiKey, bearer string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.buildHeaders(headers) {
		req.Header.Set(k, v)
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	limit := int64(maxResponseBytes)
	if resp.StatusCode >= 400 {
		limit = maxErrorBodyBytes
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// buildHeaders builds request headers.
func (c *Client) buildHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}

	for k, v := range c.config.DefaultHeaders {
		headers[k] = v
	}
	for k, v := range extra {
		headers[k] = v
	}

	return headers
}

// parseError parses an error response.
func parseError(body []byte, statusCode int) error {
	var errResp struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          string `json:"details"`
		Hint             string `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return &Error{
			Code:       "unknown",
			Message:    strings.TrimSpace(string(body)),
			StatusCode: statusCode,
		}
	}

	msg := errResp.Message
	if msg == "" {
		msg = errResp.Msg
	}
	if msg == "" {
		msg = errResp.ErrorDescription
	}
	if msg == "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	code := errResp.ErrorCode
	if code == "" && errResp.Code != nil {
		code = fmt.Sprint(errResp.Code)
	}
	if code == "" {
		code = errResp.Error
	}

	return &Error{
		Code:       code,
		Message:    msg,
		Details:    errResp.Details,
		Hint:       errResp.Hint,
		StatusCode: statusCode,
	}
}
