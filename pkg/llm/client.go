// Package llm is a small client for OpenAI compatible chat, file and
// fine-tuning endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-errors/errors"
	"golang.org/x/time/rate"
)

// DefaultHost is the public API root. Paths are joined onto it.
const DefaultHost = "https://api.openai.com/v1"

var ErrMissingAPIKey = errors.Errorf("an API key is required, set OPENAI_API_KEY")

// Config stores the API host and credentials.
type Config struct {
	// Host defaults to DefaultHost.
	Host         *url.URL
	APIKey       string
	Organization string
	HTTPClient   *http.Client
	// Limiter throttles outgoing requests when set.
	Limiter *rate.Limiter
}

type Client struct {
	host    *url.URL
	key     string
	org     string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient validates the credential once so later calls never run without it.
func NewClient(c Config) (*Client, error) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	host := c.Host
	if host == nil {
		var err error
		host, err = url.Parse(DefaultHost)
		if err != nil {
			return nil, err
		}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		host:    host,
		key:     key,
		org:     c.Organization,
		http:    httpClient,
		limiter: c.Limiter,
	}, nil
}

// ParseHost parses a base URL, falling back to DefaultHost when s is empty.
func ParseHost(s string) (*url.URL, error) {
	if s == "" {
		s = DefaultHost
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API host %q", s)
	}
	return u, nil
}

func (c *Client) endpoint(elem ...string) string {
	return c.host.JoinPath(elem...).String()
}

// send performs the request and returns the response when the status is 2xx.
// Any other status is drained into an *APIError.
func (c *Client) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.key)
	if c.org != "" {
		req.Header.Set("OpenAI-Organization", c.org)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return resp, nil
}

// do sends a JSON body (when in is not nil) and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	var contentType string
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, endpoint, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}
