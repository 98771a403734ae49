package annotate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// OpenAIProvider annotates images with an OpenAI vision-capable chat model
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	prompt  string
	timeout time.Duration
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	modelName := config.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   modelName,
		prompt:  VisionPrompt(config.Features, config.Language),
		timeout: config.timeout(30 * time.Second),
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Annotate sends the image URL as an image_url content part
func (p *OpenAIProvider) Annotate(ctx context.Context, imageURL string) (model.Annotation, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: p.prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   200,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.Type
			if s, ok := apiErr.Code.(string); ok && s != "" {
				code = s
			}
			return fail(&FailedError{Provider: p.Name(), Status: apiErr.HTTPStatusCode, Code: code, Message: apiErr.Message})
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return fail(&FailedError{Provider: p.Name(), Status: reqErr.HTTPStatusCode, Err: err})
		}
		return fail(&FailedError{Provider: p.Name(), Transport: true, Err: err})
	}

	if len(resp.Choices) == 0 {
		return fail(&FailedError{Provider: p.Name(), Code: CodeBadResponse, Message: "no choices in response"})
	}

	return ParseVisionJSON(p.Name(), strings.TrimSpace(resp.Choices[0].Message.Content))
}
