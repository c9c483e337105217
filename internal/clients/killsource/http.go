package killsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxBody = 1 << 20

// HTTPSource reads a cumulative kill total from a stats API and derives the
// delta from it.
type HTTPSource struct {
	baseURL   string
	apiKey    string
	killsPath string
	client    *http.Client
}

func NewHTTP(baseURL, apiKey, killsPath string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		killsPath: killsPath,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) KillsSince(ctx context.Context, externalID string, cursor int64) (Delta, error) {
	total, err := s.total(ctx, externalID)
	if err != nil {
		return Delta{}, err
	}

	return deltaFromTotal(cursor, total), nil
}

func (s *HTTPSource) total(ctx context.Context, externalID string) (int64, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build stats request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("stats request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stats request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, fmt.Errorf("read stats body: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("stats body is not valid json")
	}

	kills := gjson.GetBytes(body, s.killsPath)
	if !kills.Exists() || kills.Type != gjson.Number {
		return 0, fmt.Errorf("stats body has no numeric %q", s.killsPath)
	}

	return kills.Int(), nil
}
