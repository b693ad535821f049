// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client is the Go SDK for the agency CMS API. It covers the
// data layer (typed resources over a tag-addressed query cache), the
// client-side auth state and the admin route guard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config is the client configuration read from the environment.
type Config struct {
	APIURL  string        `env:"AGENCY_API_URL" envDefault:"http://localhost:8080/api"`
	Timeout time.Duration `env:"AGENCY_API_TIMEOUT" envDefault:"15s"`
	// TokenFile persists the session token; empty keeps it in memory.
	TokenFile string `env:"AGENCY_TOKEN_FILE"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return cfg, nil
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStorage keeps the session token in s.
func WithStorage(s Storage) Option {
	return func(c *Client) { c.tokens = NewTokenStore(s) }
}

// WithQueryOptions tunes the query cache.
func WithQueryOptions(opts QueryOptions) Option {
	return func(c *Client) { c.queryOpts = &opts }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the API under one base URL.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    *TokenStore
	queries   *QueryCache
	queryOpts *QueryOptions
	logger    *slog.Logger
	auth      *AuthState
}

// New creates a Client for the API mounted at baseURL, for example
// "https://agency.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}

	c := &Client{baseURL: u}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.tokens == nil {
		c.tokens = NewTokenStore(nil)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	qo := DefaultQueryOptions()
	if c.queryOpts != nil {
		qo = *c.queryOpts
	}
	c.queries = NewQueryCache(qo, c.logger)
	c.auth = newAuthState(c)
	return c, nil
}

// NewFromConfig creates a Client from cfg.
func NewFromConfig(cfg *Config, opts ...Option) (*Client, error) {
	base := []Option{WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.TokenFile != "" {
		base = append(base, WithStorage(NewFileStorage(cfg.TokenFile)))
	}
	return New(cfg.APIURL, append(base, opts...)...)
}

// Tokens returns the token store.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// Queries returns the query cache.
func (c *Client) Queries() *QueryCache { return c.queries }

// Auth returns the auth state.
func (c *Client) Auth() *AuthState { return c.auth }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// request is one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// token overrides the stored token when set.
	token string
	// anonymous sends no Authorization header.
	anonymous bool
}

// do sends req and returns the raw response body of a 2xx response. Other
// statuses are decoded into an *APIError; transport failures become a
// *NetworkError.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	target := c.endpoint(req.path, req.query)

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.anonymous {
		token := req.token
		if token == "" {
			if token, err = c.tokens.Token(); err != nil {
				return nil, fmt.Errorf("read token: %w", err)
			}
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: req.method, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Method: req.method, URL: target, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, data)
		c.logger.Debug("api request failed", "method", req.method, "url", target, "status", resp.StatusCode, "code", apiErr.Code)
		return nil, apiErr
	}
	return data, nil
}

func decodeAPIError(status int, data []byte) *APIError {
	var env struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Error != nil {
		env.Error.Status = status
		return env.Error
	}
	return &APIError{Status: status}
}

// getJSON fetches path and decodes the (possibly {"data"}-wrapped) value.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

// send issues a write and decodes the response into out when out is set.
func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	data, err := c.do(ctx, request{method: method, path: path, body: body})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decodeData(data, out)
}

func decodeData(data []byte, out any) error {
	if err := json.Unmarshal(unwrapData(data), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health is the public part of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health checks the API.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
