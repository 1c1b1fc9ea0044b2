package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// BridgeCandidate is a memory surfaced by bridge discovery, scored by how
// novel (distant from the query) and how well-connected it is to the
// activated memory set.
type BridgeCandidate struct {
	Memory              domain.Memory
	Novelty             float32
	ConnectionPotential float32
	BridgeScore         float32
	Explanation         string
}

// BridgeDiscovery implements spec.md §4.8: instead of surfacing the closest
// memories to a query, it inverts distance to surface memories that are
// distant from the query yet still well-connected to the set of memories
// spreading activation has already surfaced - "bridges" between the
// activated neighborhood and otherwise-unrelated knowledge.
type BridgeDiscovery struct {
	store   domain.MetadataStore
	vectors domain.VectorStore

	noveltyWeight    float64
	connectionWeight float64
	minNovelty       float64
	maxCandidates    int

	logger *zap.Logger
}

func NewBridgeDiscovery(store domain.MetadataStore, vectors domain.VectorStore, noveltyWeight, connectionWeight, minNovelty float64, maxCandidates int, logger *zap.Logger) *BridgeDiscovery {
	return &BridgeDiscovery{
		store:            store,
		vectors:          vectors,
		noveltyWeight:    noveltyWeight,
		connectionWeight: connectionWeight,
		minNovelty:       minNovelty,
		maxCandidates:    maxCandidates,
		logger:           logger,
	}
}

// QueryHash is the cache key bridge results are stored/looked-up under.
// Bridges are not level-scoped (candidates are pooled across all three
// hierarchy levels), so the key is just project + query.
func QueryHash(projectID string, query []float32) string {
	h := sha256.New()
	h.Write([]byte(projectID))
	for _, v := range query {
		bits := math.Float32bits(v)
		h.Write([]byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Discover implements spec.md §4.8's discover_bridges: pool candidates by
// vector similarity across all three hierarchy levels, discard anything
// already in the activated set or too similar to the query to be novel,
// then score the rest by novelty (1 - similarity to query) and connection
// potential (max cosine similarity to any activated memory). Returns the
// cached entries whenever any exist for the query hash; cached entries do
// not expire.
func (b *BridgeDiscovery) Discover(ctx context.Context, projectID string, query []float32, activated []domain.Memory, k int) ([]BridgeCandidate, error) {
	hash := QueryHash(projectID, query)

	if cached, err := b.store.GetBridgeCache(ctx, hash); err == nil && len(cached) > 0 {
		candidates := make([]BridgeCandidate, 0, len(cached))
		for _, c := range cached {
			mem, err := b.store.RetrieveMemory(ctx, c.BridgeID)
			if err != nil {
				continue
			}
			candidates = append(candidates, BridgeCandidate{
				Memory:              *mem,
				Novelty:             c.Novelty,
				ConnectionPotential: c.ConnectionPotential,
				BridgeScore:         c.BridgeScore,
				Explanation:         explainBridge(c.Novelty, c.ConnectionPotential),
			})
		}
		if len(candidates) > 0 {
			sortBridgeCandidates(candidates)
			if len(candidates) > k {
				candidates = candidates[:k]
			}
			return candidates, nil
		}
	}

	activatedSet := make(map[string]bool, len(activated))
	for _, a := range activated {
		activatedSet[a.ID] = true
	}

	perLevel := b.maxCandidates
	seen := make(map[string]domain.SearchResult)
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		hits, err := b.vectors.SearchLevel(ctx, projectID, level, query, perLevel, nil)
		if err != nil {
			b.logger.Debug("bridge: failed to pool candidates", zap.Int("level", int(level)), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			if _, ok := seen[hit.ID]; !ok {
				seen[hit.ID] = hit
			}
		}
	}

	pool := make([]domain.SearchResult, 0, len(seen))
	for _, hit := range seen {
		pool = append(pool, hit)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > b.maxCandidates {
		pool = pool[:b.maxCandidates]
	}

	var candidates []BridgeCandidate
	for _, hit := range pool {
		if activatedSet[hit.ID] {
			continue
		}

		novelty := 1 - hit.Score
		if float64(novelty) < b.minNovelty {
			// Too close to the query to count as a bridge (spec.md §4.8: a
			// bridge is found by inverting distance, not maximizing it).
			continue
		}

		mem, err := b.store.RetrieveMemory(ctx, hit.ID)
		if err != nil {
			continue
		}

		connectionPotential := maxCosineToActivated(mem.Embedding, activated)
		score := float32(b.noveltyWeight)*novelty + float32(b.connectionWeight)*connectionPotential

		candidates = append(candidates, BridgeCandidate{
			Memory:              *mem,
			Novelty:             novelty,
			ConnectionPotential: connectionPotential,
			BridgeScore:         score,
			Explanation:         explainBridge(novelty, connectionPotential),
		})
	}

	sortBridgeCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	for _, c := range candidates {
		_ = b.store.PutBridgeCacheEntry(ctx, domain.BridgeCacheEntry{
			QueryHash:           hash,
			BridgeID:            c.Memory.ID,
			BridgeScore:         c.BridgeScore,
			Novelty:             c.Novelty,
			ConnectionPotential: c.ConnectionPotential,
		})
	}

	return candidates, nil
}

// maxCosineToActivated is connection_potential (spec.md §4.8): a candidate's
// similarity to the activated set is the best similarity to any single
// member, not an average over its own outgoing edges.
func maxCosineToActivated(embedding []float32, activated []domain.Memory) float32 {
	if len(activated) == 0 {
		return 0
	}
	var best float64
	for _, a := range activated {
		if sim := cosineSimilarity(embedding, a.Embedding); sim > best {
			best = sim
		}
	}
	return float32(best)
}

// sortBridgeCandidates orders by bridge_score, then breaks ties by novelty,
// then by recency - so that among equally-scored bridges the newer, more
// novel one surfaces first (spec.md §4.8).
func sortBridgeCandidates(candidates []BridgeCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BridgeScore != candidates[j].BridgeScore {
			return candidates[i].BridgeScore > candidates[j].BridgeScore
		}
		if candidates[i].Novelty != candidates[j].Novelty {
			return candidates[i].Novelty > candidates[j].Novelty
		}
		return candidates[i].Memory.Timestamp.After(candidates[j].Memory.Timestamp)
	})
}

func explainBridge(novelty, connectionPotential float32) string {
	var noveltyWord string
	switch {
	case novelty >= 0.7:
		noveltyWord = "highly novel"
	case novelty >= 0.5:
		noveltyWord = "moderately novel"
	default:
		noveltyWord = "somewhat novel"
	}
	var connWord string
	switch {
	case connectionPotential >= 0.7:
		connWord = "strong connections"
	case connectionPotential >= 0.4:
		connWord = "moderate connections"
	default:
		connWord = "weak connections"
	}
	return noveltyWord + " content with " + connWord + " to the activated memory set"
}
