package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/danielorf/ArtCaptionBot/internal/model"
	"github.com/danielorf/ArtCaptionBot/internal/worker"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"
	redditShortURL  = "https://redd.it/"
)

// Reddit lists "hot" posts of a subreddit
type Reddit struct {
	client    *http.Client
	baseURL   string
	oauth     bool
	userAgent string
	logger    *slog.Logger
}

// NewReddit creates a reddit source. With a client id and user credentials the
// OAuth API is used; otherwise the public JSON listing.
func NewReddit(cfg model.RedditConfig, httpClient *http.Client, limiter *worker.Limiter, logger *slog.Logger) *Reddit {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	transport := httpClient.Transport
	if limiter != nil {
		transport = limiter.Transport(transport)
	}

	baseURL := redditPublicURL
	useOAuth := cfg.ClientID != "" && cfg.Username != ""
	if useOAuth {
		baseURL = redditOAuthURL
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = redditTokenURL
		}
		src := &passwordTokenSource{
			config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint: oauth2.Endpoint{
					TokenURL:  tokenURL,
					AuthStyle: oauth2.AuthStyleInHeader,
				},
			},
			username:   cfg.Username,
			password:   cfg.Password,
			httpClient: &http.Client{Transport: transport, Timeout: httpClient.Timeout},
			userAgent:  cfg.UserAgent,
		}
		transport = &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, src),
			Base:   transport,
		}
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reddit{
		client: &http.Client{
			Transport:     transport,
			Timeout:       httpClient.Timeout,
			CheckRedirect: httpClient.CheckRedirect,
		},
		baseURL:   baseURL,
		oauth:     useOAuth,
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "source.reddit"),
	}
}

// Name returns the source identifier
func (r *Reddit) Name() string {
	return "reddit"
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Permalink string `json:"permalink"`
}

// ListCandidates fetches up to limit hot posts of the subreddit named by category
func (r *Reddit) ListCandidates(ctx context.Context, category string, limit int) ([]model.ContentItem, error) {
	limit = normalizeLimit(limit)

	path := "/r/" + url.PathEscape(category) + "/hot"
	if !r.oauth {
		path += ".json"
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("raw_json", "1")
	endpoint := r.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit listing r/%s: %w", category, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit listing r/%s: status %d", category, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode reddit listing: %w", err)
	}

	items := make([]model.ContentItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.ID == "" {
			continue
		}
		items = append(items, model.ContentItem{
			ID:        post.ID,
			Title:     post.Title,
			URL:       post.URL,
			Permalink: redditShortURL + post.ID,
			Category:  category,
		})
		if len(items) == limit {
			break
		}
	}

	r.logger.Debug("listed candidates", "category", category, "count", len(items))
	return items, nil
}

// passwordTokenSource obtains script-app tokens with the password grant.
// Reddit issues no refresh token for this grant, so expiry means a new exchange.
type passwordTokenSource struct {
	config     *oauth2.Config
	username   string
	password   string
	httpClient *http.Client
	userAgent  string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	client := &http.Client{
		Transport: &userAgentTransport{base: s.httpClient.Transport, userAgent: s.userAgent},
		Timeout:   s.httpClient.Timeout,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	tok, err := s.config.PasswordCredentialsToken(ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("reddit token: %w", err)
	}
	return tok, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.userAgent == "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return base.RoundTrip(clone)
}
