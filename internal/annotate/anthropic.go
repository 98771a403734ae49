package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// AnthropicProvider annotates images with Claude through the Messages API
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	model      string
	prompt     string
	timeout    time.Duration
	httpClient *http.Client
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type string `json:"type"` // "url"
	URL  string `json:"url"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	modelName := config.Model
	if modelName == "" {
		modelName = "claude-3-5-haiku-20241022"
	}

	return &AnthropicProvider{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      modelName,
		prompt:     VisionPrompt(config.Features, config.Language),
		timeout:    config.timeout(30 * time.Second),
		httpClient: config.client(30 * time.Second),
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Annotate sends the image by URL with the vision prompt
func (p *AnthropicProvider) Annotate(ctx context.Context, imageURL string) (model.Annotation, error) {
	apiReq := anthropicRequest{
		Model:     p.model,
		MaxTokens: 200,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{Type: "image", Source: &anthropicImageSource{Type: "url", URL: imageURL}},
					{Type: "text", Text: p.prompt},
				},
			},
		},
		Temperature: 0.2,
	}

	resp, ferr := p.makeRequest(ctx, apiReq)
	if ferr != nil {
		return fail(ferr)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return ParseVisionJSON(p.Name(), block.Text)
		}
	}
	return fail(&FailedError{Provider: p.Name(), Code: CodeBadResponse, Message: "no text content in response"})
}

// makeRequest makes an HTTP request to the Anthropic API
func (p *AnthropicProvider) makeRequest(ctx context.Context, apiReq anthropicRequest) (*anthropicResponse, *FailedError) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Code: CodeBadResponse, Err: err}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/messages", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Transport: true, Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Transport: true, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Transport: true, Status: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Type != "" {
			return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: apiErr.Error.Type, Message: apiErr.Error.Message}
		}
		return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: CodeBadResponse, Err: err}
	}
	return &resp, nil
}
