package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/worker"
)

const listingJSON = `{"kind":"Listing","data":{"children":[
	{"kind":"t3","data":{"id":"p1","title":"Barn","url":"https://i.redd.it/p1.jpg","permalink":"/r/itookapicture/comments/p1/barn/"}},
	{"kind":"t3","data":{"id":"p2","title":"Self post","url":"https://www.reddit.com/r/itookapicture/comments/p2/","permalink":"/r/itookapicture/comments/p2/"}},
	{"kind":"t3","data":{"id":"","title":"broken"}},
	{"kind":"t3","data":{"id":"p3","title":"Lake","url":"https://i.redd.it/p3.png","permalink":"/r/itookapicture/comments/p3/lake/"}}
]}}`

func TestReddit_PublicListing(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		if r.Header.Get("Authorization") != "" {
			t.Errorf("public listing must not send credentials")
		}
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	src := NewReddit(model.RedditConfig{BaseURL: server.URL, UserAgent: "test-agent"}, server.Client(), worker.NewLimiter(0, 1), nil)
	items, err := src.ListCandidates(context.Background(), "itookapicture", 0)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}

	if gotPath != "/r/itookapicture/hot.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "limit=50") {
		t.Errorf("expected default limit 50, got query %q", gotQuery)
	}
	if gotUA != "test-agent" {
		t.Errorf("expected user agent to be sent, got %q", gotUA)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	first := items[0]
	if first.ID != "p1" || first.URL != "https://i.redd.it/p1.jpg" || first.Permalink != "https://redd.it/p1" {
		t.Errorf("unexpected first item: %+v", first)
	}
	if first.Category != "itookapicture" {
		t.Errorf("expected category to be set, got %q", first.Category)
	}
	if items[2].ID != "p3" {
		t.Errorf("expected source order to be preserved, got %s", items[2].ID)
	}
}

func TestReddit_LimitTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	src := NewReddit(model.RedditConfig{BaseURL: server.URL}, server.Client(), nil, nil)
	items, err := src.ListCandidates(context.Background(), "pics", 1)
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestReddit_OAuthListing(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			t.Errorf("expected client credentials in header, got %q/%q", user, pass)
		}
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "bot" {
			t.Errorf("unexpected token form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/r/albumartporn/hot", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("expected bearer token, got %q", got)
		}
		_, _ = w.Write([]byte(listingJSON))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := model.RedditConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		Username:     "bot",
		Password:     "hunter2",
		UserAgent:    "test-agent",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/api/v1/access_token",
	}
	src := NewReddit(cfg, server.Client(), nil, nil)

	for i := 0; i < 2; i++ {
		items, err := src.ListCandidates(context.Background(), "albumartporn", 10)
		if err != nil {
			t.Fatalf("ListCandidates failed: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(items))
		}
	}
	if tokenCalls != 1 {
		t.Errorf("expected token to be reused, got %d exchanges", tokenCalls)
	}
}

func TestReddit_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewReddit(model.RedditConfig{BaseURL: server.URL}, server.Client(), nil, nil)
	_, err := src.ListCandidates(context.Background(), "pics", 5)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
}
