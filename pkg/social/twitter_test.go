package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.URL.Query().Get("max_results"); got != "10" {
			t.Errorf("max_results should clamp to 10, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "1", "text": "bonk to the moon", "author_id": "42", "created_at": "2025-05-01T12:00:00Z"},
			},
		})
	}))
	defer srv.Close()

	c := NewTwitter("token123", srv.URL)
	tweets, err := c.SearchRecent(context.Background(), "$BONK", 3)
	if err != nil {
		t.Fatalf("SearchRecent: %v", err)
	}
	if len(tweets) != 1 || tweets[0].Text != "bonk to the moon" {
		t.Fatalf("unexpected tweets: %+v", tweets)
	}
}

func TestSearchRecentAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewTwitter("bad", srv.URL)
	if _, err := c.SearchRecent(context.Background(), "q", 10); err == nil {
		t.Fatal("expected error on 401")
	}
}
