package annotate

import (
	"fmt"
	"strings"
)

// New creates the annotator named by config.Provider
func New(config Config) (Annotator, error) {
	provider := strings.ToLower(config.Provider)
	config.Features.Description = true

	switch provider {
	case "azure", "":
		return NewAzureProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown annotator provider: %s (supported: azure, openai, anthropic, ollama)", config.Provider)
	}
}
