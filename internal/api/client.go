// Package api implements the HTTP client for the screen-config backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// Default timeout for backend requests.
	defaultTimeout = 10 * time.Second

	// Maximum response body size (4MB) - screen templates and data pages
	// are small; anything bigger is a server bug.
	maxBodySize = 4 * 1024 * 1024

	screenPathPrefix  = "/v1/screens/"
	versionPathPrefix = "/v1/screen-config/version/"
)

// DataConfig is the pagination block of a screen payload.
type DataConfig struct {
	PageSize     int               `json:"pageSize"`
	FieldMapping map[string]string `json:"fieldMapping,omitempty"`
}

// ScreenPayload is the full-body response of a screen fetch.
type ScreenPayload struct {
	ScreenKey    string                     `json:"screenKey"`
	ScreenName   string                     `json:"screenName"`
	Pattern      string                     `json:"pattern"`
	Version      int                        `json:"version"`
	Template     json.RawMessage            `json:"template"`
	Actions      []json.RawMessage          `json:"actions,omitempty"`
	DataEndpoint string                     `json:"dataEndpoint,omitempty"`
	DataConfig   *DataConfig                `json:"dataConfig,omitempty"`
	SlotData     map[string]json.RawMessage `json:"slotData,omitempty"`
	HandlerKey   string                     `json:"handlerKey,omitempty"`
	UpdatedAt    time.Time                  `json:"updatedAt"`

	// Validator is the ETag returned alongside the payload, not part of the
	// JSON body.
	Validator string `json:"-"`
}

// versionPayload is the response of a version check.
type versionPayload struct {
	Version string `json:"version"`
}

// Client talks to the screen-config backend. It normalizes the base URL once
// at construction so endpoint concatenation never produces "//".
type Client struct {
	baseURL  string
	platform string
	httpc    *http.Client

	// requests counts every round trip issued; tests use it to verify
	// cache-hit behavior.
	requests atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = timeout
	}
}

// New creates a backend client. platform is sent as a query parameter on
// screen fetches so the server can tailor templates per client platform.
func New(baseURL, platform string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		platform: platform,
		httpc:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestCount returns the number of round trips issued so far.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

// FetchScreen fetches the definition payload for key. When validator is
// non-empty it is sent as If-None-Match; a 304 reply returns
// (nil, true, nil) and the cached value stands.
func (c *Client) FetchScreen(ctx context.Context, key, validator string) (*ScreenPayload, bool, error) {
	reqURL := c.baseURL + screenPathPrefix + url.PathEscape(key) + "?platform=" + url.QueryEscape(c.platform)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build screen request: %w", err)
	}
	if validator != "" {
		req.Header.Set("If-None-Match", validator)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil, true, nil
	case resp.StatusCode != http.StatusOK:
		return nil, false, &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	var payload ScreenPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decode screen payload: %w", err)
	}
	payload.Validator = resp.Header.Get("ETag")
	return &payload, false, nil
}

// FetchVersion fetches the current semantic version string for key.
func (c *Client) FetchVersion(ctx context.Context, key string) (string, error) {
	reqURL := c.baseURL + versionPathPrefix + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build version request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	var payload versionPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode version payload: %w", err)
	}
	return payload.Version, nil
}

// FetchData fetches a raw data-endpoint payload. endpoint is an
// absolute path; params are appended as the query string.
func (c *Client) FetchData(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + ensureLeadingSlash(endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build data request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	return json.RawMessage(body), nil
}

// Delete issues the destructive call for a committed pending delete. The
// expected response body is empty; any 2xx status counts as success.
func (c *Client) Delete(ctx context.Context, endpoint, method string) error {
	if method == "" {
		method = http.MethodDelete
	}
	reqURL := c.baseURL + ensureLeadingSlash(endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.requests.Add(1)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{URL: req.URL.String(), Err: err}
	}
	return resp, nil
}

func ensureLeadingSlash(endpoint string) string {
	if strings.HasPrefix(endpoint, "/") {
		return endpoint
	}
	return "/" + endpoint
}
