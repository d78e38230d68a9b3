// Package social provides the Twitter/X recent-search client used by the
// sentiment tool.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTwitterBaseURL = "https://api.twitter.com/2"

// Tweet is one matched post from a recent search.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Twitter is a minimal v2 recent-search client.
type Twitter struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// NewTwitter creates a client. baseURL may be empty to use the public API.
func NewTwitter(bearerToken, baseURL string) *Twitter {
	if baseURL == "" {
		baseURL = defaultTwitterBaseURL
	}
	return &Twitter{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SearchRecent returns recent tweets matching the query. maxResults is
// clamped to the API's 10..100 window.
func (t *Twitter) SearchRecent(ctx context.Context, query string, maxResults int) ([]Tweet, error) {
	if maxResults < 10 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("tweet.fields", "created_at,author_id")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching tweets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tweet search returned %s", resp.Status)
	}

	var body struct {
		Data []Tweet `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding tweet search: %w", err)
	}
	return body.Data, nil
}
