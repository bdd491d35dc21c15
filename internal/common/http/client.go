// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client covers the service's outbound HTTP surface: every request
// carries the caller's context and, when configured, a bearer token.
type Client struct {
	httpClient *http.Client
	bearer     string
}

func NewClient(timeout time.Duration, bearerToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		bearer: bearerToken,
	}
}

func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	return c.httpClient.Do(req)
}

// PostJSON marshals payload and posts it with an application/json body.
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return c.httpClient.Do(req)
}

func (c *Client) setAuth(req *http.Request) {
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
}
