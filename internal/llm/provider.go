package llm

import (
	"fmt"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// Provider constants.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an LLM client based on the provider name. The
// Consolidator treats a nil-error mock client and a real provider
// identically: LLMClient is an optional enrichment collaborator, never
// required for consolidation correctness (spec.md §4.9).
func NewClient(provider, apiKey string) (domain.LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock, "":
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, mock)", provider)
	}
}
