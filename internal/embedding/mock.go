package embedding

import (
	"context"
	"hash/fnv"
)

const mockDimension = 32

// MockClient derives deterministic, non-random pseudo-embeddings from text
// hashes, so tests get stable vectors without calling out to a real
// provider.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Encode(ctx context.Context, text string) ([]float32, error) {
	return hashVector(text), nil
}

func (c *MockClient) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = hashVector(t)
	}
	return vectors, nil
}

func (c *MockClient) EmbeddingDimension() int {
	return mockDimension
}

func hashVector(text string) []float32 {
	v := make([]float32, mockDimension)
	h := fnv.New32a()
	for i := range v {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		sum := h.Sum32()
		v[i] = float32(sum%2000)/1000 - 1
	}
	return v
}
