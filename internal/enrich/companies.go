// Package enrich proxies the external company-autocomplete API behind a TTL
// cache, so profile forms can suggest company names and logos without hitting
// the upstream on every keystroke.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Suggestion is one company candidate returned by the upstream API.
type Suggestion struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
}

// Service looks up company suggestions, serving repeats from the cache.
type Service struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	ttl        time.Duration
	logger     *slog.Logger
}

// New constructs a Service. baseURL points at the suggestion endpoint; ttl
// bounds how long a cached response is reused.
func New(logger *slog.Logger, baseURL string, cache Cache, ttl time.Duration) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Suggest returns company candidates for the query. Cache failures degrade to
// an upstream call; upstream failures return an error, never stale fabricated
// data.
func (s *Service) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Suggestion{}, nil
	}
	key := "companies:suggest:" + strings.ToLower(query)

	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("suggestion cache read failed", "query", query, "error", err)
	} else if ok {
		var suggestions []Suggestion
		if err := json.Unmarshal(cached, &suggestions); err == nil {
			return suggestions, nil
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key)
	}

	suggestions, err := s.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(suggestions); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			s.logger.Warn("suggestion cache write failed", "query", query, "error", err)
		}
	}
	return suggestions, nil
}

func (s *Service) fetch(ctx context.Context, query string) ([]Suggestion, error) {
	endpoint := s.baseURL + "?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build suggestion request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("company suggestion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("company suggestion upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var suggestions []Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestion response: %w", err)
	}
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	return suggestions, nil
}
