// Package mapsvc is the client for the application-resource-mapping
// service's REST API.
package mapsvc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/types"
)

// Config holds client settings.
type Config struct {
	BaseURL string        // e.g. "https://mapping.internal/api/v1"
	Timeout time.Duration // per-request; default 60s
	// InsecureSkipVerify disables TLS verification. The internal
	// endpoints run with certificates the CI runners do not trust.
	InsecureSkipVerify bool
}

// Client fetches the applications, apps, and mappings datasets.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a mapping-service client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- config-gated, internal endpoints
		}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: cfg.BaseURL,
	}
}

// FetchApplications returns the raw applications payload. The caller
// only needs deep-searched metadata from it, so it stays a node tree.
func (c *Client) FetchApplications(ctx context.Context) (*types.Node, error) {
	body, err := c.get(ctx, "/application-resources/applications", url.Values{})
	if err != nil {
		return nil, err
	}

	node, err := types.ParseNode(body)
	if err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	return node, nil
}

// FetchApps returns the typed applications-with-services dataset for
// one app code, resources included.
func (c *Client) FetchApps(ctx context.Context, appCode string) ([]types.Application, error) {
	params := url.Values{}
	params.Set("mfc_app_code", appCode)
	params.Set("include_resource", "true")

	body, err := c.get(ctx, "/apps/", params)
	if err != nil {
		return nil, err
	}

	node, err := types.ParseNode(body)
	if err != nil {
		return nil, fmt.Errorf("decode apps: %w", err)
	}
	return types.ApplicationsFromNode(node), nil
}

// FetchMappings returns the flat mapping records for one app code,
// segment, and month.
func (c *Client) FetchMappings(ctx context.Context, appCode, segment, month string) ([]types.Mapping, error) {
	params := url.Values{}
	params.Set("app_code", appCode)
	params.Set("segment", segment)
	params.Set("month", month)

	body, err := c.get(ctx, "/application-resources/mappings", params)
	if err != nil {
		return nil, err
	}
	return decodeMappings(body)
}

// decodeMappings accepts both a list payload and a lone object, which
// the service emits for single-record results.
func decodeMappings(body []byte) ([]types.Mapping, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var m types.Mapping
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("decode mapping: %w", err)
		}
		return []types.Mapping{m}, nil
	}

	var mappings []types.Mapping
	if err := json.Unmarshal(trimmed, &mappings); err != nil {
		return nil, fmt.Errorf("decode mappings: %w", err)
	}
	return mappings, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	log.Debug().
		Str("path", path).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched")

	return body, nil
}
