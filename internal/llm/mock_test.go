package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Summarize_ReturnsConfiguredResponse(t *testing.T) {
	c := NewMockClient()
	c.SummarizeResponse = "a tighter summary"

	out, err := c.Summarize(context.Background(), "some long episodic content")
	require.NoError(t, err)
	assert.Equal(t, "a tighter summary", out)
	assert.Equal(t, []string{"some long episodic content"}, c.SummarizeCalls)
}

func TestMockClient_Summarize_ReturnsConfiguredError(t *testing.T) {
	c := NewMockClient()
	c.SummarizeError = errors.New("provider unavailable")

	out, err := c.Summarize(context.Background(), "content")
	assert.Empty(t, out)
	assert.EqualError(t, err, "provider unavailable")
}

func TestMockClient_Summarize_RecordsMultipleCalls(t *testing.T) {
	c := NewMockClient()
	_, _ = c.Summarize(context.Background(), "first")
	_, _ = c.Summarize(context.Background(), "second")

	assert.Equal(t, []string{"first", "second"}, c.SummarizeCalls)
}

func TestMockClient_Reset_ClearsStateAndRestoresDefault(t *testing.T) {
	c := NewMockClient()
	c.SummarizeError = errors.New("boom")
	_, _ = c.Summarize(context.Background(), "content")

	c.Reset()

	assert.Nil(t, c.SummarizeError)
	assert.Empty(t, c.SummarizeCalls)
	assert.Equal(t, "mock summary", c.SummarizeResponse)

	out, err := c.Summarize(context.Background(), "content again")
	require.NoError(t, err)
	assert.Equal(t, "mock summary", out)
}
