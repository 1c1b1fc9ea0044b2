package llm

import "context"

// MockClient is a configurable LLM client for testing. Set SummarizeResponse
// / SummarizeError to control behavior; calls are recorded for assertions.
type MockClient struct {
	SummarizeResponse string
	SummarizeError    error
	SummarizeCalls    []string
}

func NewMockClient() *MockClient {
	return &MockClient{SummarizeResponse: "mock summary"}
}

func (c *MockClient) Summarize(ctx context.Context, content string) (string, error) {
	c.SummarizeCalls = append(c.SummarizeCalls, content)
	if c.SummarizeError != nil {
		return "", c.SummarizeError
	}
	return c.SummarizeResponse, nil
}

// Reset clears recorded calls and restores default responses.
func (c *MockClient) Reset() {
	c.SummarizeResponse = "mock summary"
	c.SummarizeError = nil
	c.SummarizeCalls = nil
}
