package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// closenessGateBand is how far (in raw cosine similarity) a result may trail
// the top hit and still be eligible for the modification-date rerank (spec.md
// §4.7): a clearly weaker match never outranks a clearly stronger one just
// because its source was edited more recently.
const closenessGateBand = 0.05

// SimilaritySearch implements spec.md §4.7: vector k-NN search within one
// project/level, blended with a recency bias applied to every candidate, plus
// a separate modification-date rerank that only nudges order among
// near-tied candidates.
type SimilaritySearch struct {
	vectors domain.VectorStore

	similarityWeight  float64
	recencyWeight     float64
	recencyDecayHours float64

	modificationDateWeight      float64
	modificationRecencyDecayDays float64

	minSimilarity float32

	logger *zap.Logger
}

// NewSimilaritySearch normalizes the two weights to sum to 1; the package
// default of 0.8/0.2 applies whenever both are left at zero.
func NewSimilaritySearch(vectors domain.VectorStore, similarityWeight, recencyWeight float64, logger *zap.Logger) *SimilaritySearch {
	if similarityWeight == 0 && recencyWeight == 0 {
		similarityWeight, recencyWeight = 0.8, 0.2
	}
	if sum := similarityWeight + recencyWeight; sum > 0 {
		similarityWeight /= sum
		recencyWeight /= sum
	}
	return &SimilaritySearch{
		vectors:                      vectors,
		similarityWeight:             similarityWeight,
		recencyWeight:                recencyWeight,
		recencyDecayHours:            168,
		modificationDateWeight:       0.3,
		modificationRecencyDecayDays: 30,
		minSimilarity:                0.1,
		logger:                       logger,
	}
}

// Search returns the top k memories in projectID/level most similar to
// query. combined_score blends raw similarity and a recency term for every
// candidate, then a modification-date rerank nudges order among the
// near-tied top results.
func (s *SimilaritySearch) Search(ctx context.Context, projectID string, level domain.HierarchyLevel, query []float32, k int, scoreThreshold *float32) ([]domain.MemoryWithScore, error) {
	threshold := s.minSimilarity
	if scoreThreshold != nil {
		threshold = *scoreThreshold
	}
	hits, err := s.vectors.SearchLevel(ctx, projectID, level, query, k, &threshold)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	now := time.Now()
	results := make([]domain.MemoryWithScore, 0, len(hits))
	for _, h := range hits {
		mw := domain.MemoryWithScore{Similarity: h.Score, Distance: 1 - h.Score}
		mw.ID = h.ID
		if ts, ok := accessTimestamp(h.Payload); ok {
			mw.RecencyScore = float32(recencyScore(now, ts, s.recencyDecayHours))
		}
		mw.CombinedScore = mw.Similarity*float32(s.similarityWeight) + mw.RecencyScore*float32(s.recencyWeight)
		results = append(results, mw)
	}

	s.applyModificationDateRerank(results, hits, now)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// applyModificationDateRerank adds a modification_date term (spec.md §4.7)
// to every candidate within closenessGateBand of the top raw similarity -
// a separate add-on to combined_score, not a replacement for the recency
// blend already applied to every result.
func (s *SimilaritySearch) applyModificationDateRerank(results []domain.MemoryWithScore, hits []domain.SearchResult, now time.Time) {
	if len(results) == 0 {
		return
	}
	var topSimilarity float32
	for i, r := range results {
		if i == 0 || r.Similarity > topSimilarity {
			topSimilarity = r.Similarity
		}
	}
	for i := range results {
		if topSimilarity-results[i].Similarity > float32(closenessGateBand) {
			continue
		}
		modified, ok := modifiedDate(hits[i].Payload)
		if !ok {
			continue
		}
		ageDays := now.Sub(modified).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		term := math.Exp(-ageDays / s.modificationRecencyDecayDays)
		results[i].CombinedScore += float32(s.modificationDateWeight) * float32(term)
	}
}

// accessTimestamp resolves "hours since last_accessed or timestamp" (spec.md
// §4.7), preferring last_accessed and falling back to the memory's creation
// timestamp when it's absent from the payload.
func accessTimestamp(payload map[string]any) (time.Time, bool) {
	if raw, ok := payload["last_accessed"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, true
		}
	}
	if raw, ok := payload["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func modifiedDate(payload map[string]any) (time.Time, bool) {
	raw, ok := payload["modified_date"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// recencyScore is exp(-hours_since/decayHours) - with the default
// decayHours=168 the score falls to 1/e (about 0.37) after one week.
func recencyScore(now, at time.Time, decayHours float64) float64 {
	hours := now.Sub(at).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / decayHours)
}
