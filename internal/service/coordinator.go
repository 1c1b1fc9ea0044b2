package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// conceptKeywords/activityKeywords back the level heuristic
// store_experience falls back to when no explicit hierarchy_level is given
// (spec.md §4.10): concept language skews toward stable, general statements;
// activity language skews toward one-off events. There is no context word
// list: text matching neither list is stored as a context memory.
var (
	conceptKeywords  = []string{"always", "generally", "in general", "as a rule", "principle", "concept", "definition"}
	activityKeywords = []string{"today", "yesterday", "just now", "happened", "did", "ran", "fixed", "error", "bug"}
)

// defaultImportanceScore is assigned to a memory at creation time, before it
// has ever been through consolidation (which is the only place an access
// pattern can justify a different score). Consolidation's own promoted
// twins get a real importance_score derived from MemoryAccessPattern; a
// freshly stored memory has no access history yet, so it starts neutral
// rather than at zero - zero would make it immediately eligible for
// DecayEngine's importance-floor cleanup condition on its very first cycle.
const defaultImportanceScore = 0.5

// RetrievalBucket is one named slice of a retrieve_memories result.
type RetrievalBucket struct {
	Memories []domain.MemoryWithScore `json:"memories"`
}

// RetrievalResult is retrieve_memories' {core, peripheral, bridge} envelope.
type RetrievalResult struct {
	Core      []domain.MemoryWithScore `json:"core"`
	Peripheral []domain.MemoryWithScore `json:"peripheral"`
	Bridge    []domain.MemoryWithScore `json:"bridge"`
}

// LoadResult is load_memories_from_source's summary.
type LoadResult struct {
	Success               bool           `json:"success"`
	Error                 string         `json:"error,omitempty"`
	MemoriesLoaded        int            `json:"memories_loaded"`
	ConnectionsCreated    int            `json:"connections_created"`
	HierarchyDistribution map[string]int `json:"hierarchy_distribution"`
	ProcessingTime        time.Duration  `json:"processing_time"`
	MemoriesFailed        int            `json:"memories_failed"`
	ConnectionsFailed     int            `json:"connections_failed"`
}

// UpsertResult is upsert_memories' summary.
type UpsertResult struct {
	Success  bool `json:"success"`
	Updated  int  `json:"updated"`
	Inserted int  `json:"inserted"`
}

// Coordinator is the public façade (spec.md §4.10): it composes encoding,
// storage, retrieval, and bridge discovery into the five operations
// external callers use. It is scoped to one project (one VectorStore
// collection namespace; spec.md §4.2).
type Coordinator struct {
	projectID    string
	store        domain.MetadataStore
	vectors      domain.VectorStore
	encoder      domain.Encoder
	activation   *ActivationEngine
	similarity   *SimilaritySearch
	bridge       *BridgeDiscovery
	consolidator *Consolidator
	strengthFloor float32
	maxActivations int
	logger       *zap.Logger
}

func NewCoordinator(
	projectID string,
	store domain.MetadataStore,
	vectors domain.VectorStore,
	encoder domain.Encoder,
	activation *ActivationEngine,
	similarity *SimilaritySearch,
	bridge *BridgeDiscovery,
	consolidator *Consolidator,
	strengthFloor float32,
	maxActivations int,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		projectID:      projectID,
		store:          store,
		vectors:        vectors,
		encoder:        encoder,
		activation:     activation,
		similarity:     similarity,
		bridge:         bridge,
		consolidator:   consolidator,
		strengthFloor:  strengthFloor,
		maxActivations: maxActivations,
		logger:         logger,
	}
}

// StoreExperience implements store_experience(text, context?) -> id.
func (c *Coordinator) StoreExperience(ctx context.Context, text string, hctx map[string]any) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	level := c.resolveLevel(text, hctx)
	memType := domain.MemoryTypeEpisodic
	if level == domain.LevelConcept {
		memType = domain.MemoryTypeSemantic
	}

	vector, err := c.encoder.Encode(ctx, text)
	if err != nil {
		return "", fmt.Errorf("encode experience: %w", err)
	}

	now := time.Now()
	mem := &domain.Memory{
		ID:              uuid.NewString(),
		Content:         text,
		Level:           level,
		MemoryType:      memType,
		Embedding:       vector,
		Timestamp:       now,
		LastAccessed:    now,
		Strength:        1.0,
		ImportanceScore: defaultImportanceScore,
		Metadata:        map[string]any{"project_id": c.projectID},
	}

	if err := c.store.StoreMemory(ctx, mem); err != nil {
		c.logger.Error("store_experience: metadata store failed", zap.Error(err))
		return "", nil
	}

	if err := c.vectors.StoreVector(ctx, c.projectID, mem.ID, vector, memoryPayload(mem)); err != nil {
		c.logger.Warn("store_experience: vector store failed, metadata is authoritative", zap.String("memory_id", mem.ID), zap.Error(err))
	}

	return mem.ID, nil
}

func (c *Coordinator) resolveLevel(text string, hctx map[string]any) domain.HierarchyLevel {
	if hctx != nil {
		if raw, ok := hctx["hierarchy_level"]; ok {
			if n, ok := asInt(raw); ok && domain.ValidLevel(n) {
				return domain.HierarchyLevel(n)
			}
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range conceptKeywords {
		if strings.Contains(lower, kw) {
			return domain.LevelConcept
		}
	}
	for _, kw := range activityKeywords {
		if strings.Contains(lower, kw) {
			return domain.LevelEpisode
		}
	}
	return domain.LevelContext
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// RetrieveMemories implements retrieve_memories(query, types, max_results).
func (c *Coordinator) RetrieveMemories(ctx context.Context, query string, types []string, maxResults int) (*RetrievalResult, error) {
	result := &RetrievalResult{}
	if strings.TrimSpace(query) == "" {
		return result, nil
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	wantCore := containsStr(types, "core") || len(types) == 0
	wantPeripheral := containsStr(types, "peripheral") || len(types) == 0
	wantBridge := containsStr(types, "bridge") || len(types) == 0

	vector, err := c.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	var activation *ActivationResult
	if wantCore || wantPeripheral || wantBridge {
		activation, err = c.activation.Spread(ctx, c.projectID, vector)
		if err != nil {
			c.logger.Debug("activation spread failed", zap.Error(err))
			activation = &ActivationResult{}
		}
	}

	if wantCore || wantPeripheral {
		if len(activation.Core) == 0 && len(activation.Peripheral) == 0 {
			limit := maxResults
			if c.maxActivations < limit {
				limit = c.maxActivations
			}
			hits, err := c.fallbackSimilarity(ctx, vector, limit)
			if err != nil {
				return nil, err
			}
			half := (len(hits) + 1) / 2
			if wantCore {
				result.Core = append(result.Core, hits[:half]...)
			}
			if wantPeripheral {
				result.Peripheral = append(result.Peripheral, hits[half:]...)
			}
		} else {
			if wantCore {
				for _, am := range activation.Core {
					result.Core = append(result.Core, domain.MemoryWithScore{Memory: am.Memory, Similarity: float32(am.Activation), CombinedScore: float32(am.Activation)})
				}
			}
			if wantPeripheral {
				for _, am := range activation.Peripheral {
					result.Peripheral = append(result.Peripheral, domain.MemoryWithScore{Memory: am.Memory, Similarity: float32(am.Activation), CombinedScore: float32(am.Activation)})
				}
			}
		}
	}

	if wantBridge {
		candidates, err := c.bridge.Discover(ctx, c.projectID, vector, flattenActivated(activation), maxResults)
		if err != nil {
			c.logger.Debug("bridge discovery failed", zap.Error(err))
		}
		for _, cand := range candidates {
			result.Bridge = append(result.Bridge, domain.MemoryWithScore{
				Memory:        cand.Memory,
				Similarity:    1 - cand.Novelty,
				CombinedScore: cand.BridgeScore,
			})
		}
	}

	c.touchAll(ctx, result)
	return result, nil
}

// flattenActivated merges core and peripheral into the activated set bridge
// discovery scores novelty/connection potential against (spec.md §4.8).
// Tolerates a nil result (activation spread failed or was never run).
func flattenActivated(result *ActivationResult) []domain.Memory {
	if result == nil {
		return nil
	}
	mems := make([]domain.Memory, 0, len(result.Core)+len(result.Peripheral))
	for _, am := range result.Core {
		mems = append(mems, am.Memory)
	}
	for _, am := range result.Peripheral {
		mems = append(mems, am.Memory)
	}
	return mems
}

func (c *Coordinator) fallbackSimilarity(ctx context.Context, vector []float32, limit int) ([]domain.MemoryWithScore, error) {
	var all []domain.MemoryWithScore
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		hits, err := c.similarity.Search(ctx, c.projectID, level, vector, limit, nil)
		if err != nil {
			continue
		}
		all = append(all, hits...)
	}
	if len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		mem, err := c.store.RetrieveMemory(ctx, all[i].ID)
		if err == nil {
			all[i].Memory = *mem
		}
	}
	return all, nil
}

func (c *Coordinator) touchAll(ctx context.Context, result *RetrievalResult) {
	now := time.Now()
	for _, bucket := range [][]domain.MemoryWithScore{result.Core, result.Peripheral, result.Bridge} {
		for i := range bucket {
			mem := &bucket[i].Memory
			mem.Touch(now)
			if mem.Metadata == nil {
				mem.Metadata = map[string]any{}
			}
			mem.Metadata["similarity_score"] = bucket[i].Similarity
			if err := c.store.UpdateMemory(ctx, mem); err != nil {
				c.logger.Debug("failed to touch memory", zap.String("memory_id", mem.ID), zap.Error(err))
			}
			if err := c.store.RecordAccess(ctx, mem.ID, now); err != nil {
				c.logger.Debug("failed to record access event", zap.String("memory_id", mem.ID), zap.Error(err))
			}
		}
	}
}

func containsStr(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

// ConsolidateMemories implements consolidate_memories() -> one cycle.
func (c *Coordinator) ConsolidateMemories(ctx context.Context) (*ConsolidationResult, error) {
	return c.consolidator.Run(ctx)
}

// LoadMemoriesFromSource implements load_memories_from_source(loader, path).
func (c *Coordinator) LoadMemoriesFromSource(ctx context.Context, loader domain.Loader, path string) (*LoadResult, error) {
	start := time.Now()
	result := &LoadResult{HierarchyDistribution: map[string]int{}}

	ok, err := loader.ValidateSource(ctx, path)
	if err != nil || !ok {
		result.Success = false
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Error = "invalid source"
		}
		return result, nil
	}

	memories, err := loader.LoadFromSource(ctx, path, nil)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result, nil
	}

	loaded := make(map[string]bool, len(memories))
	for i := range memories {
		mem := &memories[i]
		if mem.Metadata == nil {
			mem.Metadata = map[string]any{}
		}
		mem.Metadata["project_id"] = c.projectID
		if mem.ImportanceScore == 0 {
			mem.ImportanceScore = defaultImportanceScore
		}

		if len(mem.Embedding) == 0 {
			vector, err := c.encoder.Encode(ctx, mem.Content)
			if err != nil {
				result.MemoriesFailed++
				continue
			}
			mem.Embedding = vector
		}

		if err := c.store.StoreMemory(ctx, mem); err != nil {
			result.MemoriesFailed++
			continue
		}
		if err := c.vectors.StoreVector(ctx, c.projectID, mem.ID, mem.Embedding, memoryPayload(mem)); err != nil {
			c.logger.Warn("load_memories_from_source: vector store failed", zap.String("memory_id", mem.ID), zap.Error(err))
		}

		loaded[mem.ID] = true
		result.MemoriesLoaded++
		result.HierarchyDistribution[levelName(mem.Level)]++
	}

	connections, err := loader.ExtractConnections(ctx, memories)
	if err == nil {
		for _, conn := range connections {
			if conn.Strength < c.strengthFloor || !loaded[conn.SourceID] || !loaded[conn.TargetID] {
				result.ConnectionsFailed++
				continue
			}
			if _, err := c.store.AddConnection(ctx, conn.SourceID, conn.TargetID, conn.Strength, conn.Type); err != nil {
				result.ConnectionsFailed++
				continue
			}
			result.ConnectionsCreated++
		}
	}

	result.Success = true
	result.ProcessingTime = time.Since(start)
	return result, nil
}

func levelName(l domain.HierarchyLevel) string {
	switch l {
	case domain.LevelConcept:
		return "concept"
	case domain.LevelContext:
		return "context"
	default:
		return "episode"
	}
}

// UpsertMemories implements upsert_memories(memories).
func (c *Coordinator) UpsertMemories(ctx context.Context, memories []domain.Memory) (*UpsertResult, error) {
	result := &UpsertResult{Success: true}

	for i := range memories {
		mem := &memories[i]
		existing, err := c.store.RetrieveMemory(ctx, mem.ID)
		if err == nil && existing != nil {
			mem.AccessCount = existing.AccessCount
			mem.Timestamp = existing.Timestamp
			result.Updated++
		} else {
			result.Inserted++
		}

		if len(mem.Embedding) == 0 {
			vector, err := c.encoder.Encode(ctx, mem.Content)
			if err != nil {
				result.Success = false
				continue
			}
			mem.Embedding = vector
		}

		if mem.Metadata == nil {
			mem.Metadata = map[string]any{}
		}
		mem.Metadata["project_id"] = c.projectID

		if err := c.store.StoreMemory(ctx, mem); err != nil {
			result.Success = false
			continue
		}
		if err := c.vectors.UpdateVector(ctx, c.projectID, mem.ID, mem.Embedding, memoryPayload(mem)); err != nil {
			c.logger.Warn("upsert_memories: vector store failed", zap.String("memory_id", mem.ID), zap.Error(err))
		}
	}

	return result, nil
}
