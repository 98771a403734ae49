package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultTwitterURL is the X/Twitter API v2 base
const DefaultTwitterURL = "https://api.twitter.com"

// maxPageSize is the largest max_results the timeline endpoint accepts
const maxPageSize = 100

// Twitter derives history from the links in an account's recent tweets.
// Every caption ends with the post's short permalink, so the last path
// segment of a tweet's first link is the published content id.
type Twitter struct {
	client  *http.Client
	baseURL string
}

// NewTwitter creates a timeline-backed history using app-only bearer auth
func NewTwitter(bearerToken, baseURL string, httpClient *http.Client) *Twitter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultTwitterURL
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
	return &Twitter{
		client: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: httpClient.Transport},
			Timeout:   httpClient.Timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type tweetURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type tweet struct {
	ID       string `json:"id"`
	Entities struct {
		URLs []tweetURL `json:"urls"`
	} `json:"entities"`
}

type timelinePage struct {
	Data []tweet `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// ListRecent scans the actor's last count tweets. Tweets without links are skipped.
func (t *Twitter) ListRecent(ctx context.Context, actor string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}

	userID, err := t.resolveUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	var ids []string
	scanned := 0
	next := ""
	for scanned < count {
		page := min(count-scanned, maxPageSize)
		if page < 5 {
			page = 5 // API minimum
		}

		tl, err := t.timeline(ctx, userID, page, next)
		if err != nil {
			return nil, err
		}
		for _, tw := range tl.Data {
			if scanned == count {
				break
			}
			scanned++
			if id := contentID(tw); id != "" {
				ids = append(ids, id)
			}
		}
		if tl.Meta.NextToken == "" || len(tl.Data) == 0 {
			break
		}
		next = tl.Meta.NextToken
	}
	return ids, nil
}

func (t *Twitter) resolveUser(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", fmt.Errorf("history actor is empty")
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.getJSON(ctx, t.baseURL+"/2/users/by/username/"+url.PathEscape(handle), &out); err != nil {
		return "", fmt.Errorf("resolve @%s: %w", handle, err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("resolve @%s: user not found", handle)
	}
	return out.Data.ID, nil
}

func (t *Twitter) timeline(ctx context.Context, userID string, pageSize int, token string) (*timelinePage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(pageSize))
	q.Set("tweet.fields", "entities")
	if token != "" {
		q.Set("pagination_token", token)
	}

	var page timelinePage
	endpoint := t.baseURL + "/2/users/" + url.PathEscape(userID) + "/tweets?" + q.Encode()
	if err := t.getJSON(ctx, endpoint, &page); err != nil {
		return nil, fmt.Errorf("timeline %s: %w", userID, err)
	}
	if len(page.Data) == 0 && len(page.Errors) > 0 {
		return nil, fmt.Errorf("timeline %s: %s", userID, page.Errors[0].Detail)
	}
	return &page, nil
}

func (t *Twitter) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// contentID returns the last path segment of the tweet's first link
func contentID(tw tweet) string {
	if len(tw.Entities.URLs) == 0 {
		return ""
	}
	u := tw.Entities.URLs[0]
	link := u.DisplayURL
	if link == "" {
		link = u.ExpandedURL
	}
	return lastSegment(link)
}

func lastSegment(link string) string {
	link = strings.TrimRight(link, "/")
	if idx := strings.IndexAny(link, "?#"); idx >= 0 {
		link = link[:idx]
	}
	if idx := strings.LastIndex(link, "/"); idx >= 0 {
		return link[idx+1:]
	}
	return ""
}
