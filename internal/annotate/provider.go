// Package annotate obtains a caption and safety classification for an image URL.
package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// Annotator describes images
type Annotator interface {
	// Name returns the provider name
	Name() string

	// Annotate makes one call describing the image at imageURL.
	// Failed calls return a *FailedError; the returned Annotation then carries
	// the failure code in RawErrorCode.
	Annotate(ctx context.Context, imageURL string) (model.Annotation, error)
}

// Features selects the facets requested from the provider
type Features struct {
	Description bool // Always requested
	Adult       bool // Adult/explicit classification
}

// ImageFetcher downloads image bytes for providers that need them inline
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Image, error)
}

// Config holds annotator configuration
type Config struct {
	// Provider name: "azure", "openai", "anthropic", "ollama"
	Provider string

	// Model name (LLM providers only)
	Model string

	// APIKey for azure/openai/anthropic
	APIKey string

	// BaseURL overrides the provider endpoint
	BaseURL string

	// Language of the generated caption
	Language string

	Features Features

	// Timeout for one annotation call
	Timeout time.Duration

	// HTTPClient is shared with the rest of the bot (proxy settings)
	HTTPClient *http.Client

	// Images is used by providers that upload image bytes (ollama)
	Images ImageFetcher
}

// ConfigFromModel converts the annotator section of cfg to annotate.Config.
// The adult facet is requested whenever the pipeline filters explicit
// content, otherwise every annotation would pass the safety check.
func ConfigFromModel(cfg *model.Config, httpClient *http.Client, images ImageFetcher) Config {
	a := cfg.Annotator
	return Config{
		Provider:   a.Provider,
		Model:      a.Model,
		APIKey:     a.APIKey,
		BaseURL:    a.Endpoint,
		Language:   a.Language,
		Features:   Features{Description: true, Adult: a.AdultFilter || cfg.Pipeline.FilterExplicit},
		Timeout:    a.Timeout,
		HTTPClient: httpClient,
		Images:     images,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func (c Config) client(fallback time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout(fallback)}
}

// Failure codes produced locally rather than by a provider
const (
	CodeNoCaption   = "NoCaption"
	CodeBadResponse = "BadResponse"
	CodeTransport   = "Transport"
)

// FailedError reports an annotation call that produced no usable annotation
type FailedError struct {
	Provider  string
	Transport bool   // Network-level failure, no response
	Status    int    // HTTP status, 0 for transport failures
	Code      string // Provider error code or a local Code* constant
	Message   string
	Err       error
}

func (e *FailedError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Provider)
	sb.WriteString(" annotation failed")
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (%d)", e.Status)
	}
	if e.Code != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Code)
	}
	if e.Message != "" {
		sb.WriteString(" - ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// IsFailed reports whether err is (or wraps) a *FailedError
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}

// fail builds the failed annotation and error pair returned by providers
func fail(e *FailedError) (model.Annotation, error) {
	code := e.Code
	if code == "" {
		if e.Transport {
			code = CodeTransport
		} else {
			code = CodeBadResponse
		}
		e.Code = code
	}
	return model.Annotation{RawErrorCode: code, Provider: e.Provider}, e
}

// VisionPrompt is the instruction given to LLM providers. The reply contract
// is parsed by ParseVisionJSON.
func VisionPrompt(f Features, language string) string {
	if language == "" {
		language = "en"
	}
	adult := ""
	if f.Adult {
		adult = `
- "adult": true if the image contains nudity or sexually explicit content, otherwise false
- "adult_score": your confidence from 0.0 to 1.0 that the image is explicit`
	}
	return fmt.Sprintf(`Describe this image in one short sentence, the way an image captioning service would (e.g. "a red barn in a field"). Write in language %q. Do not start with "This image shows".

Reply with a single JSON object and nothing else:
- "caption": the sentence, lowercase, no trailing period
- "confidence": how sure you are the caption is accurate, from 0.0 to 1.0%s`, language, adult)
}

type visionReply struct {
	Caption    string   `json:"caption"`
	Confidence float64  `json:"confidence"`
	Adult      bool     `json:"adult"`
	AdultScore *float64 `json:"adult_score"`
}

// ParseVisionJSON extracts the annotation from an LLM reply. Code fences and
// prose around the JSON object are tolerated.
func ParseVisionJSON(provider, text string) (model.Annotation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fail(&FailedError{Provider: provider, Code: CodeBadResponse, Message: "no JSON object in reply"})
	}

	var reply visionReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return fail(&FailedError{Provider: provider, Code: CodeBadResponse, Err: err})
	}

	caption := strings.TrimSpace(reply.Caption)
	if caption == "" {
		return fail(&FailedError{Provider: provider, Code: CodeNoCaption})
	}

	ann := model.Annotation{
		CaptionText: caption,
		Confidence:  clamp01(reply.Confidence),
		IsExplicit:  reply.Adult,
		Provider:    provider,
	}
	if reply.AdultScore != nil {
		ann.AdultScore = clamp01(*reply.AdultScore)
	}
	return ann, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
