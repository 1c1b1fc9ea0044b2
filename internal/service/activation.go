package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// seedPoolSize bounds how many level-0 concept memories are pulled from the
// vector index as activation seed candidates. spec.md §4.6 describes seeding
// from "all level-0 memories scored by similarity to the query above
// threshold"; in practice that means the top of the vector index, not an
// unbounded table scan, so this is the practical cutoff applied before the
// threshold filter.
const seedPoolSize = 50

// ActivatedMemory is a memory reached by spreading activation, carrying its
// final activation score (spec.md §4.6).
type ActivatedMemory struct {
	Memory     domain.Memory
	Activation float64
}

// ActivationResult is spreading activation's {core, peripheral} split plus
// timing, as returned by retrieve_memories (spec.md §4.6/§4.10).
type ActivationResult struct {
	Core       []ActivatedMemory
	Peripheral []ActivatedMemory
	ElapsedMS  int64
}

// ActivationEngine implements spec.md §4.6: spreading activation seeded from
// level-0 concept memories similar to the query, expanding across the
// connection graph, where each node's activation is a blend of its own
// similarity/importance/access-count signal and a recency multiplier - not
// pure edge-energy decay.
type ActivationEngine struct {
	store   domain.MetadataStore
	vectors domain.VectorStore

	seedThreshold       float64
	coreThreshold       float64
	peripheralThreshold float64
	maxActivations      int

	logger *zap.Logger
}

func NewActivationEngine(store domain.MetadataStore, vectors domain.VectorStore, seedThreshold, coreThreshold, peripheralThreshold float64, maxActivations int, logger *zap.Logger) *ActivationEngine {
	return &ActivationEngine{
		store:               store,
		vectors:             vectors,
		seedThreshold:       seedThreshold,
		coreThreshold:       coreThreshold,
		peripheralThreshold: peripheralThreshold,
		maxActivations:      maxActivations,
		logger:              logger,
	}
}

// Spread implements spec.md §4.6's activate_memories:
//
//  1. seed from level-0 concept memories whose similarity to query exceeds
//     seedThreshold
//  2. expand breadth-first across connections whose strength is at least
//     seedThreshold and whose strength times the expanding node's activation
//     exceeds peripheralThreshold, scoring every node reached with:
//     activation = (cos(query, m.embedding) + 0.3*importance + min(0.5, 0.1*access_count)) * recency
//     recency    = max(0.1, 1 - decay_rate*days_since_last_accessed)
//  3. classify >= coreThreshold as core, >= peripheralThreshold as
//     peripheral, anything lower is dropped and does not expand further
func (e *ActivationEngine) Spread(ctx context.Context, projectID string, query []float32) (*ActivationResult, error) {
	start := time.Now()
	result := &ActivationResult{}

	threshold := float32(e.seedThreshold)
	seeds, err := e.vectors.SearchLevel(ctx, projectID, domain.LevelConcept, query, seedPoolSize, &threshold)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		result.ElapsedMS = time.Since(start).Milliseconds()
		return result, nil
	}

	now := time.Now()
	visited := make(map[string]bool, len(seeds))
	activated := make(map[string]*ActivatedMemory, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if !visited[s.ID] {
			visited[s.ID] = true
			queue = append(queue, s.ID)
		}
	}

	for len(queue) > 0 && len(activated) < e.maxActivations {
		id := queue[0]
		queue = queue[1:]

		mem, err := e.store.RetrieveMemory(ctx, id)
		if err != nil {
			e.logger.Debug("activation: failed to load memory", zap.String("memory_id", id), zap.Error(err))
			continue
		}

		score := e.activationScore(query, mem, now)
		if score < e.peripheralThreshold {
			continue
		}
		activated[id] = &ActivatedMemory{Memory: *mem, Activation: score}
		if len(activated) >= e.maxActivations {
			break
		}

		edges, err := e.store.GetEdges(ctx, id, float32(e.seedThreshold))
		if err != nil {
			e.logger.Debug("activation: failed to load edges", zap.String("memory_id", id), zap.Error(err))
			continue
		}
		for _, edge := range edges {
			if float64(edge.Strength)*score <= e.peripheralThreshold {
				continue
			}
			neighbor := edge.TargetID
			if neighbor == id {
				neighbor = edge.SourceID
			}
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			queue = append(queue, neighbor)
			if _, err := e.store.ActivateConnection(ctx, edge.SourceID, edge.TargetID); err != nil {
				e.logger.Debug("activation: failed to mark edge activated", zap.Error(err))
			}
		}
	}

	for _, am := range activated {
		if am.Activation >= e.coreThreshold {
			result.Core = append(result.Core, *am)
		} else {
			result.Peripheral = append(result.Peripheral, *am)
		}
	}
	sort.Slice(result.Core, func(i, j int) bool { return result.Core[i].Activation > result.Core[j].Activation })
	sort.Slice(result.Peripheral, func(i, j int) bool { return result.Peripheral[i].Activation > result.Peripheral[j].Activation })

	result.ElapsedMS = time.Since(start).Milliseconds()
	return result, nil
}

func (e *ActivationEngine) activationScore(query []float32, mem *domain.Memory, now time.Time) float64 {
	sim := cosineSimilarity(query, mem.Embedding)
	score := sim + 0.3*float64(mem.ImportanceScore) + math.Min(0.5, 0.1*float64(mem.AccessCount))

	decayRate := float64(mem.DecayRate)
	if decayRate <= 0 {
		decayRate = 0.1
	}
	daysSinceAccess := now.Sub(mem.LastAccessed).Hours() / 24
	if daysSinceAccess < 0 {
		daysSinceAccess = 0
	}
	recency := 1 - decayRate*daysSinceAccess
	if recency < 0.1 {
		recency = 0.1
	}

	score *= recency
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// cosineSimilarity is shared by ActivationEngine and BridgeDiscovery - both
// need cos(a, b) against in-memory embeddings fetched via MetadataStore
// rather than through a vector-index round trip.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
