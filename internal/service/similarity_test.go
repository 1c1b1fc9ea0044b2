package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

func storeVec(t *testing.T, vs *fakeVectorStore, project, id string, vec []float32, lastAccessed time.Time) {
	t.Helper()
	err := vs.StoreVector(context.Background(), project, id, vec, map[string]any{
		"level":         int(domain.LevelEpisode),
		"last_accessed": lastAccessed.Format(time.RFC3339),
	})
	require.NoError(t, err)
}

func storeVecWithModified(t *testing.T, vs *fakeVectorStore, project, id string, vec []float32, lastAccessed, modified time.Time) {
	t.Helper()
	err := vs.StoreVector(context.Background(), project, id, vec, map[string]any{
		"level":         int(domain.LevelEpisode),
		"last_accessed": lastAccessed.Format(time.RFC3339),
		"modified_date": modified.Format(time.RFC3339),
	})
	require.NoError(t, err)
}

func TestSimilaritySearch_Search_NearTiesRerankByRecency(t *testing.T) {
	vs := newFakeVectorStore()
	now := time.Now()

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	storeVec(t, vs, "proj", "old", []float32{1, 0, 0, 0, 0, 0, 0, 0}, now.Add(-24*30*time.Hour))
	storeVec(t, vs, "proj", "fresh", []float32{0.99, 0.01, 0, 0, 0, 0, 0, 0}, now)

	s := NewSimilaritySearch(vs, 0.8, 0.2, testLogger())
	results, err := s.Search(context.Background(), "proj", domain.LevelEpisode, query, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "fresh", results[0].ID,
		"within the closeness gate, the more recently accessed near-tie should rank first")
}

func TestSimilaritySearch_Search_StrongerMatchNeverLosesToRecency(t *testing.T) {
	vs := newFakeVectorStore()
	now := time.Now()

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	storeVec(t, vs, "proj", "strong-old", []float32{1, 0, 0, 0, 0, 0, 0, 0}, now.Add(-24*365*time.Hour))
	storeVec(t, vs, "proj", "weak-fresh", []float32{0.2, 0.98, 0, 0, 0, 0, 0, 0}, now)

	s := NewSimilaritySearch(vs, 0.8, 0.2, testLogger())
	results, err := s.Search(context.Background(), "proj", domain.LevelEpisode, query, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "strong-old", results[0].ID,
		"a clearly weaker match must never outrank a clearly stronger one just because it's newer")
}

func TestSimilaritySearch_Search_ModificationDateRerankFavorsRecentlyModifiedNearTie(t *testing.T) {
	vs := newFakeVectorStore()
	now := time.Now()

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	// Both near-identical to the query and within the closeness gate; "edited"
	// has a much more recent modified_date and should be nudged ahead.
	storeVecWithModified(t, vs, "proj", "edited", []float32{1, 0, 0, 0, 0, 0, 0, 0}, now, now)
	storeVecWithModified(t, vs, "proj", "stale", []float32{0.999, 0.001, 0, 0, 0, 0, 0, 0}, now, now.Add(-365*24*time.Hour))

	s := NewSimilaritySearch(vs, 0.8, 0.2, testLogger())
	results, err := s.Search(context.Background(), "proj", domain.LevelEpisode, query, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "edited", results[0].ID,
		"the modification-date rerank should favor the more recently modified near-tie")
}

func TestSimilaritySearch_Search_NoHitsReturnsNil(t *testing.T) {
	vs := newFakeVectorStore()
	s := NewSimilaritySearch(vs, 0.8, 0.2, testLogger())
	results, err := s.Search(context.Background(), "empty-project", domain.LevelEpisode, []float32{1, 2, 3}, 5, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSimilaritySearch_Search_RespectsK(t *testing.T) {
	vs := newFakeVectorStore()
	now := time.Now()
	for i := 0; i < 5; i++ {
		storeVec(t, vs, "proj", string(rune('a'+i)), []float32{1, float32(i) * 0.01, 0, 0, 0, 0, 0, 0}, now)
	}

	s := NewSimilaritySearch(vs, 0.8, 0.2, testLogger())
	results, err := s.Search(context.Background(), "proj", domain.LevelEpisode, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRecencyScore_OneOverEAfterOneWeekByDefault(t *testing.T) {
	now := time.Now()
	got := recencyScore(now, now.Add(-168*time.Hour), 168)
	assert.InDelta(t, 0.3679, got, 0.001, "decay_hours=168 should give exp(-1) at exactly one week")
}
