// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex fetches authors and works from the OpenAlex metadata
// API with paginated requests. The author collection uses cursor
// continuation; per-author works use page-index continuation sorted
// newest-year-first. Each pagination channel enforces a minimum interval
// between requests to stay polite to the API.
package openalex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tdiprima/openalex-pipeline/pkg/types"
)

// openAlexBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexBase = "https://api.openalex.org"

// perPage is the OpenAlex maximum page size.
const perPage = 200

// Default inter-request intervals per pagination channel.
const (
	defaultAuthorPageDelay = 100 * time.Millisecond
	defaultWorkPageDelay   = 50 * time.Millisecond
)

// Client issues paginated requests against the OpenAlex API. A Client is
// safe for concurrent use: the per-channel limiters are the shared clock
// that spaces requests regardless of which goroutine issues them.
type Client struct {
	HTTPClient *http.Client
	cfg        types.APIConfig

	authorLimiter *rate.Limiter
	workLimiter   *rate.Limiter
}

// New creates a Client with per-channel fixed-interval throttles. The
// limiters use a burst of one, which makes them plain minimum-interval
// gates rather than token buckets.
func New(httpClient *http.Client, cfg types.APIConfig) *Client {
	authorDelay := cfg.AuthorPageDelay
	if authorDelay <= 0 {
		authorDelay = defaultAuthorPageDelay
	}
	workDelay := cfg.WorkPageDelay
	if workDelay <= 0 {
		workDelay = defaultWorkPageDelay
	}
	return &Client{
		HTTPClient:    httpClient,
		cfg:           cfg,
		authorLimiter: rate.NewLimiter(rate.Every(authorDelay), 1),
		workLimiter:   rate.NewLimiter(rate.Every(workDelay), 1),
	}
}

// getPage waits on the channel's throttle, issues one GET, and decodes
// the JSON body into out. Any transport or decoding failure propagates
// immediately; the caller abandons the fetch sequence.
func (c *Client) getPage(ctx context.Context, limiter *rate.Limiter, endpoint string, params url.Values, out any) error {
	if c.cfg.Email != "" {
		params.Set("mailto", c.cfg.Email)
	}
	reqURL := openAlexBase + endpoint + "?" + params.Encode()

	if err := limiter.Wait(ctx); err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{URL: reqURL, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{URL: reqURL, Err: err}
	}
	return nil
}

func clampPerPage(remaining int) int {
	if remaining < perPage {
		return remaining
	}
	return perPage
}
