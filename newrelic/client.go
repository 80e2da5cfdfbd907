// Package newrelic resolves resource names to New Relic account
// classifications via the entity search GraphQL API.
package newrelic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// DefaultURL is the public New Relic GraphQL endpoint.
const DefaultURL = "https://api.newrelic.com/graphql"

// Config holds client settings.
type Config struct {
	URL                string
	APIKey             string
	Timeout            time.Duration // per-request; default 30s
	InsecureSkipVerify bool
}

// Client issues entity-search queries.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
}

// NewClient creates a New Relic GraphQL client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- config-gated
		}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}
}

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlResponse struct {
	Data struct {
		Actor struct {
			EntitySearch struct {
				Results struct {
					Entities []struct {
						Account struct {
							Name string `json:"name"`
						} `json:"account"`
					} `json:"entities"`
				} `json:"results"`
			} `json:"entitySearch"`
		} `json:"actor"`
	} `json:"data"`
}

// AccountName searches INFRA-domain entities by name and returns the
// first match's account name, or "NA" when nothing matches.
func (c *Client) AccountName(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf(`{
  actor {
    entitySearch(queryBuilder: { name: %s, domain: INFRA }) {
      results {
        entities {
          account {
            name
          }
        }
      }
    }
  }
}`, strconv.Quote(name))

	payload, err := json.Marshal(gqlRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("entity search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("entity search: status %d", resp.StatusCode)
	}

	var decoded gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode entity search response: %w", err)
	}

	entities := decoded.Data.Actor.EntitySearch.Results.Entities
	if len(entities) == 0 {
		return NotFound, nil
	}
	if entities[0].Account.Name == "" {
		// a match without an account name is a malformed response,
		// not a miss
		return "", fmt.Errorf("entity search: first entity has no account name")
	}
	return entities[0].Account.Name, nil
}
