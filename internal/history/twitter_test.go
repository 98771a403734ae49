package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestLastSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"redd.it/abc123", "abc123"},
		{"https://redd.it/abc123", "abc123"},
		{"redd.it/abc123/", "abc123"},
		{"redd.it/abc123?utm=x", "abc123"},
		{"example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := lastSegment(tt.in); got != tt.want {
			t.Errorf("lastSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentID_FallsBackToExpandedURL(t *testing.T) {
	var tw tweet
	tw.Entities.URLs = []tweetURL{{ExpandedURL: "https://redd.it/zz9"}}
	if got := contentID(tw); got != "zz9" {
		t.Errorf("expected zz9, got %q", got)
	}
	if got := contentID(tweet{}); got != "" {
		t.Errorf("expected empty id for tweet without links, got %q", got)
	}
}

func twitterServer(t *testing.T, pages [][]map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/ArtCaptionBot", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer bearer-1" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"42","username":"ArtCaptionBot"}}`))
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tweet.fields") != "entities" {
			t.Errorf("expected entities field, got %q", r.URL.RawQuery)
		}
		idx := 0
		if tok := r.URL.Query().Get("pagination_token"); tok != "" {
			_, _ = fmt.Sscanf(tok, "page-%d", &idx)
		}
		resp := map[string]any{"data": pages[idx]}
		if idx+1 < len(pages) {
			resp["meta"] = map[string]any{"next_token": fmt.Sprintf("page-%d", idx+1)}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func tweetWith(displayURL string) map[string]any {
	if displayURL == "" {
		return map[string]any{"id": "t", "text": "no links"}
	}
	return map[string]any{
		"id":   "t",
		"text": "caption",
		"entities": map[string]any{
			"urls": []map[string]any{{"url": "https://t.co/x", "display_url": displayURL, "expanded_url": "https://" + displayURL}},
		},
	}
}

func TestTwitter_ListRecent(t *testing.T) {
	server := twitterServer(t, [][]map[string]any{
		{tweetWith("redd.it/p1"), tweetWith(""), tweetWith("redd.it/p2")},
		{tweetWith("redd.it/p3")},
	})
	defer server.Close()

	src := NewTwitter("bearer-1", server.URL, server.Client())
	ids, err := src.ListRecent(context.Background(), "@ArtCaptionBot", 50)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	want := []string{"p1", "p2", "p3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ListRecent() = %v, want %v", ids, want)
	}
}

func TestTwitter_ListRecentStopsAtCount(t *testing.T) {
	server := twitterServer(t, [][]map[string]any{
		{tweetWith("redd.it/p1"), tweetWith("redd.it/p2"), tweetWith("redd.it/p3")},
	})
	defer server.Close()

	src := NewTwitter("bearer-1", server.URL, server.Client())
	ids, err := src.ListRecent(context.Background(), "ArtCaptionBot", 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"p1", "p2"}) {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestTwitter_UnknownUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	src := NewTwitter("bad", server.URL, server.Client())
	if _, err := src.ListRecent(context.Background(), "ArtCaptionBot", 10); err == nil {
		t.Error("expected error for unauthorized lookup")
	}
}
