// Package client calls the Green Hash optimizer HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/green-hash/fleet-optimizer/api/v1alpha1"
	"github.com/green-hash/fleet-optimizer/internal/logging"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 16 << 20
)

// APIError is returned for a non-2xx response or a response reporting success:false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("optimizer API returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one optimizer server. It does not retry.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: need an http(s) scheme and host", baseURL)
	}
	c := &Client{baseURL: u, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OptimizationData fetches a problem assembled from the server's catalog and prices.
func (c *Client) OptimizationData(ctx context.Context) (*v1alpha1.OptimizationData, error) {
	var resp v1alpha1.OptimizationDataResponse
	if err := c.do(ctx, http.MethodGet, "/optimization-data", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		msg := resp.Error
		if msg == "" {
			msg = "server reported failure without a message"
		}
		return nil, &APIError{StatusCode: http.StatusOK, Message: msg}
	}
	return resp.Data, nil
}

// Optimize posts data and returns the server's allocation.
func (c *Client) Optimize(ctx context.Context, data *v1alpha1.OptimizationData) (*v1alpha1.OptimizeResponse, error) {
	if data == nil {
		return nil, errors.New("optimization data is required")
	}
	var resp v1alpha1.OptimizeResponse
	if err := c.do(ctx, http.MethodPost, "/optimize", data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Run fetches the server's optimization data and optimizes it.
func (c *Client) Run(ctx context.Context) (*v1alpha1.OptimizeResponse, error) {
	logger := ctrl.LoggerFrom(ctx)

	data, err := c.OptimizationData(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching optimization data: %w", err)
	}
	logger.V(logging.DEBUG).Info("Fetched optimization data", "sites", len(data.Sites), "periods", data.T)

	resp, err := c.Optimize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("optimizing: %w", err)
	}
	return resp, nil
}

// Sites lists the server's site catalog.
func (c *Client) Sites(ctx context.Context) ([]v1alpha1.SiteConfig, error) {
	var list v1alpha1.SiteConfigList
	if err := c.do(ctx, http.MethodGet, "/sites", nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// UpdateSite stores site on the server and returns the stored entry.
func (c *Client) UpdateSite(ctx context.Context, site v1alpha1.SiteConfig) (*v1alpha1.SiteConfig, error) {
	var stored v1alpha1.SiteConfig
	if err := c.do(ctx, http.MethodPost, "/config", site, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorMessage extracts the "error" field of a JSON body, falling back to status.
func errorMessage(raw []byte, status string) string {
	var body v1alpha1.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return status
}
