package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

const defaultAzureEndpoint = "https://westus.api.cognitive.microsoft.com"

// AzureProvider calls the Computer Vision analyze endpoint
type AzureProvider struct {
	apiKey     string
	endpoint   string
	language   string
	features   Features
	timeout    time.Duration
	httpClient *http.Client
}

// Azure API structures
type azureRequest struct {
	URL string `json:"url"`
}

type azureResponse struct {
	Description *struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
	Adult *struct {
		IsAdultContent bool    `json:"isAdultContent"`
		IsRacyContent  bool    `json:"isRacyContent"`
		AdultScore     float64 `json:"adultScore"`
		RacyScore      float64 `json:"racyScore"`
	} `json:"adult"`
	RequestID string `json:"requestId"`

	// v1.0 puts errors at the top level, later versions nest them
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAzureProvider creates a Computer Vision annotator
func NewAzureProvider(config Config) (*AzureProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("azure vision subscription key is required")
	}

	endpoint := config.BaseURL
	if endpoint == "" {
		endpoint = defaultAzureEndpoint
	}
	language := config.Language
	if language == "" {
		language = "en"
	}

	return &AzureProvider{
		apiKey:     config.APIKey,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		language:   language,
		features:   config.Features,
		timeout:    config.timeout(30 * time.Second),
		httpClient: config.client(30 * time.Second),
	}, nil
}

// Name returns the provider name
func (p *AzureProvider) Name() string {
	return "azure"
}

func (p *AzureProvider) visualFeatures() string {
	features := []string{"Description"}
	if p.features.Adult {
		features = append(features, "Adult")
	}
	return strings.Join(features, ",")
}

// Annotate posts the image URL to /vision/v1.0/analyze
func (p *AzureProvider) Annotate(ctx context.Context, imageURL string) (model.Annotation, error) {
	body, err := json.Marshal(azureRequest{URL: imageURL})
	if err != nil {
		return fail(&FailedError{Provider: p.Name(), Code: CodeBadResponse, Err: err})
	}

	q := url.Values{}
	q.Set("visualFeatures", p.visualFeatures())
	q.Set("language", p.language)
	endpoint := p.endpoint + "/vision/v1.0/analyze?" + q.Encode()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(&FailedError{Provider: p.Name(), Transport: true, Err: err})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fail(&FailedError{Provider: p.Name(), Transport: true, Err: err})
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fail(&FailedError{Provider: p.Name(), Transport: true, Status: httpResp.StatusCode, Err: err})
	}

	var resp azureResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	// Error-coded payloads fail regardless of status
	if decodeErr == nil {
		code, msg := resp.Code, resp.Message
		if code == "" && resp.Error != nil {
			code, msg = resp.Error.Code, resp.Error.Message
		}
		if code != "" {
			return fail(&FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: code, Message: msg})
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fail(&FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Message: truncate(string(respBody), 200)})
	}
	if decodeErr != nil {
		return fail(&FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: CodeBadResponse, Err: decodeErr})
	}

	if resp.Description == nil || len(resp.Description.Captions) == 0 {
		return fail(&FailedError{Provider: p.Name(), Status: httpResp.StatusCode, Code: CodeNoCaption})
	}

	top := resp.Description.Captions[0]
	ann := model.Annotation{
		CaptionText: top.Text,
		Confidence:  top.Confidence,
		Provider:    p.Name(),
	}
	if resp.Adult != nil {
		ann.IsExplicit = resp.Adult.IsAdultContent
		ann.AdultScore = resp.Adult.AdultScore
	}
	return ann, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
