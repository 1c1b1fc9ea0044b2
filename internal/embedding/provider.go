package embedding

import (
	"fmt"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// Provider constants.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an Encoder based on the provider name (spec.md §1:
// encoding is an external collaborator, out of scope for correctness beyond
// this narrow contract).
func NewClient(provider, apiKey string) (domain.Encoder, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock, "":
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}
