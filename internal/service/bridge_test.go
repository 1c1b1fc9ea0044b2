package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

func TestBridgeDiscovery_Discover_FiltersTooCloseCandidates(t *testing.T) {
	fs := newFakeStore()
	vs := newFakeVectorStore()
	ctx := context.Background()

	seedMemory(t, fs, "near")
	seedMemory(t, fs, "far")

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, vs.StoreVector(ctx, "proj", "near", []float32{1, 0, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelEpisode)}))
	require.NoError(t, vs.StoreVector(ctx, "proj", "far", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelEpisode)}))

	b := NewBridgeDiscovery(fs, vs, 0.5, 0.5, 0.5, 100, testLogger())
	candidates, err := b.Discover(ctx, "proj", query, nil, 5)
	require.NoError(t, err)

	for _, c := range candidates {
		assert.NotEqual(t, "near", c.Memory.ID, "a candidate nearly identical to the query should be filtered as not novel enough")
	}
}

func TestBridgeDiscovery_Discover_ConnectionPotentialIsMaxSimilarityToActivatedSet(t *testing.T) {
	fs := newFakeStore()
	vs := newFakeVectorStore()
	ctx := context.Background()

	seedMemory(t, fs, "candidate")
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	candidateEmbedding := []float32{0, 1, 0, 0, 0, 0, 0, 0}
	require.NoError(t, vs.StoreVector(ctx, "proj", "candidate", candidateEmbedding, map[string]any{"level": int(domain.LevelEpisode)}))

	closeActivated := domain.Memory{ID: "act1", Embedding: []float32{0, 1, 0, 0, 0, 0, 0, 0}}
	farActivated := domain.Memory{ID: "act2", Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}}

	b := NewBridgeDiscovery(fs, vs, 0.5, 0.5, 0.1, 100, testLogger())
	candidates, err := b.Discover(ctx, "proj", query, []domain.Memory{closeActivated, farActivated}, 5)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].ConnectionPotential, 0.01,
		"connection_potential should be the best similarity to any activated memory, not an edge average")
	assert.NotEmpty(t, candidates[0].Explanation)
}

func TestBridgeDiscovery_Discover_ExcludesAlreadyActivatedMemories(t *testing.T) {
	fs := newFakeStore()
	vs := newFakeVectorStore()
	ctx := context.Background()

	seedMemory(t, fs, "already-active")
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, vs.StoreVector(ctx, "proj", "already-active", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelEpisode)}))

	activated := []domain.Memory{{ID: "already-active", Embedding: []float32{0, 1, 0, 0, 0, 0, 0, 0}}}

	b := NewBridgeDiscovery(fs, vs, 0.5, 0.5, 0.1, 100, testLogger())
	candidates, err := b.Discover(ctx, "proj", query, activated, 5)
	require.NoError(t, err)

	assert.Empty(t, candidates, "a memory already in the activated set cannot bridge to itself")
}

func TestBridgeDiscovery_Discover_PoolsAcrossAllLevels(t *testing.T) {
	fs := newFakeStore()
	vs := newFakeVectorStore()
	ctx := context.Background()

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	for _, id := range []string{"concept-cand", "context-cand", "episode-cand"} {
		seedMemory(t, fs, id)
	}
	require.NoError(t, vs.StoreVector(ctx, "proj", "concept-cand", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelConcept)}))
	require.NoError(t, vs.StoreVector(ctx, "proj", "context-cand", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelContext)}))
	require.NoError(t, vs.StoreVector(ctx, "proj", "episode-cand", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelEpisode)}))

	b := NewBridgeDiscovery(fs, vs, 0.5, 0.5, 0.1, 100, testLogger())
	candidates, err := b.Discover(ctx, "proj", query, nil, 10)
	require.NoError(t, err)

	var ids []string
	for _, c := range candidates {
		ids = append(ids, c.Memory.ID)
	}
	assert.Contains(t, ids, "concept-cand")
	assert.Contains(t, ids, "context-cand")
	assert.Contains(t, ids, "episode-cand")
}

func TestBridgeDiscovery_Discover_CachesResults(t *testing.T) {
	fs := newFakeStore()
	vs := newFakeVectorStore()
	ctx := context.Background()

	seedMemory(t, fs, "bridge1")
	require.NoError(t, vs.StoreVector(ctx, "proj", "bridge1", []float32{0, 1, 0, 0, 0, 0, 0, 0}, map[string]any{"level": int(domain.LevelEpisode)}))

	b := NewBridgeDiscovery(fs, vs, 0.5, 0.5, 0.1, 100, testLogger())
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}

	first, err := b.Discover(ctx, "proj", query, nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	hash := QueryHash("proj", query)
	cached, err := fs.GetBridgeCache(ctx, hash)
	require.NoError(t, err)
	assert.NotEmpty(t, cached, "a discovered bridge should be written to the cache for reuse")

	second, err := b.Discover(ctx, "proj", query, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, first[0].Memory.ID, second[0].Memory.ID)
	assert.NotEmpty(t, second[0].Explanation, "explanation is recomputed from cached novelty/connection_potential")
}

func TestQueryHash_DeterministicPerProject(t *testing.T) {
	query := []float32{0.1, 0.2, 0.3}
	h1 := QueryHash("proj-a", query)
	h2 := QueryHash("proj-a", query)
	h3 := QueryHash("proj-b", query)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
