package annotate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// OllamaProvider annotates images with a local multimodal model (llava, llama3.2-vision)
type OllamaProvider struct {
	baseURL    string
	model      string
	prompt     string
	timeout    time.Duration
	httpClient *http.Client
	images     ImageFetcher
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Images  []string      `json:"images"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider. Ollama only accepts inline
// image bytes, so an ImageFetcher is required.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llava:7b, llama3.2-vision)")
	}
	if config.Images == nil {
		return nil, fmt.Errorf("ollama provider requires an image fetcher")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      config.Model,
		prompt:     VisionPrompt(config.Features, config.Language),
		timeout:    config.timeout(60 * time.Second), // Local models can be slow
		httpClient: config.client(60 * time.Second),
		images:     config.Images,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Annotate downloads the image and sends it base64 encoded to /api/generate
func (p *OllamaProvider) Annotate(ctx context.Context, imageURL string) (model.Annotation, error) {
	img, err := p.images.Fetch(ctx, imageURL)
	if err != nil {
		return fail(&FailedError{Provider: p.Name(), Code: "ImageFetch", Err: err})
	}

	apiReq := ollamaRequest{
		Model:  p.model,
		Prompt: p.prompt,
		Images: []string{base64.StdEncoding.EncodeToString(img.Data)},
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  200,
		},
	}

	resp, ferr := p.makeRequest(ctx, apiReq)
	if ferr != nil {
		return fail(ferr)
	}
	return ParseVisionJSON(p.Name(), resp.Response)
}

// makeRequest makes an HTTP request to the Ollama API
func (p *OllamaProvider) makeRequest(ctx context.Context, apiReq ollamaRequest) (*ollamaResponse, *FailedError) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Code: CodeBadResponse, Err: err}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/generate", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FailedError{Provider: p.Name(), Transport: true, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Message: apiErr.Error}
		}
		return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: CodeBadResponse, Err: err}
	}
	return &resp, nil
}
