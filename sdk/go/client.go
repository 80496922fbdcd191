package evidrop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout bounds a single chunk request.
const defaultTimeout = 30 * time.Second

// Client is the low-level evidrop API client. Most applications use it
// indirectly through a Queue.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given server.
//
// Example:
//
//	client, err := evidrop.NewClient(evidrop.ClientConfig{
//	    BaseURL: "https://evidence.example.com",
//	})
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "is required"}
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ValidationError{Field: "BaseURL", Message: "must be a valid URL"}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must use http or https protocol"}
	}
	if parsedURL.Host == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must include a host"}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request makes an HTTP request to the API.
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// handleResponse checks for errors and decodes the JSON response into target.
func handleResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			errResp.Message = resp.Status
		}
		return newAPIError(resp.StatusCode, errResp.Code, errResp.Message)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// SessionStatus retrieves the server-side state of an upload session.
func (c *Client) SessionStatus(ctx context.Context, uploadID string) (*SessionStatus, error) {
	if uploadID == "" {
		return nil, &ValidationError{Field: "uploadID", Message: "is required"}
	}

	resp, err := c.request(ctx, http.MethodGet, "/api/upload/status/"+url.PathEscape(uploadID), nil, "")
	if err != nil {
		return nil, err
	}

	var status SessionStatus
	if err := handleResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelSession deletes an upload session and its staged chunks on the server.
func (c *Client) CancelSession(ctx context.Context, uploadID string) error {
	if uploadID == "" {
		return &ValidationError{Field: "uploadID", Message: "is required"}
	}

	resp, err := c.request(ctx, http.MethodDelete, "/api/upload/"+url.PathEscape(uploadID), nil, "")
	if err != nil {
		return err
	}
	return handleResponse(resp, nil)
}
