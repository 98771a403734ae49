package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

const (
	defaultTwitterAPI = "https://api.twitter.com"
	twitterAuthURL    = "https://twitter.com/i/oauth2/authorize"
	twitterTokenPath  = "/2/oauth2/token"
)

// TwitterConfig holds user-context credentials for posting
type TwitterConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	BaseURL      string // API base, default https://api.twitter.com
	UploadURL    string // Media upload endpoint, default {BaseURL}/2/media/upload
}

// Twitter posts tweets with one attached image through API v2
type Twitter struct {
	client    *http.Client
	baseURL   string
	uploadURL string
}

// NewTwitter creates a twitter publisher. An empty access token with a
// refresh token makes the first request refresh through the token endpoint.
func NewTwitter(cfg TwitterConfig, httpClient *http.Client) (*Twitter, error) {
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil, fmt.Errorf("twitter publisher requires an access or refresh token")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwitterAPI
	}
	uploadURL := cfg.UploadURL
	if uploadURL == "" {
		uploadURL = baseURL + "/2/media/upload"
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   twitterAuthURL,
			TokenURL:  baseURL + twitterTokenPath,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	tok := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Twitter{
		client:    oauthCfg.Client(ctx, tok),
		baseURL:   baseURL,
		uploadURL: uploadURL,
	}, nil
}

// Name returns the publisher name
func (t *Twitter) Name() string {
	return "twitter"
}

type twitterError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e twitterError) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	default:
		return e.Title
	}
}

// Post uploads the image then creates the tweet
func (t *Twitter) Post(ctx context.Context, img *model.Image, caption string) (string, error) {
	mediaID, err := t.uploadMedia(ctx, img)
	if err != nil {
		return "", err
	}
	return t.createTweet(ctx, caption, mediaID)
}

func (t *Twitter) uploadMedia(ctx context.Context, img *model.Image) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("write media_category: %w", err)
	}
	if err := w.WriteField("media_type", img.MIMEType); err != nil {
		return "", fmt.Errorf("write media_type: %w", err)
	}
	if err := writeImagePart(w, "media", img); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		Data struct {
			ID       string `json:"id"`
			MediaKey string `json:"media_key"`
		} `json:"data"`
	}
	if err := t.do(req, &out); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("upload media: response has no media id")
	}
	return out.Data.ID, nil
}

type tweetRequest struct {
	Text  string `json:"text"`
	Media struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media"`
}

func (t *Twitter) createTweet(ctx context.Context, text, mediaID string) (string, error) {
	payload := tweetRequest{Text: text}
	payload.Media.MediaIDs = []string{mediaID}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := t.do(req, &out); err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("create tweet: response has no id")
	}
	return out.Data.ID, nil
}

func (t *Twitter) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr twitterError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.message() != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.message())
		}
		return fmt.Errorf("API error (%d)", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
