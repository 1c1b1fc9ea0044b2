package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

const (
	defaultConsolidationInterval = 6 * time.Hour
	minAccessCountForCandidacy   = 3
	consolidationCooldown        = 24 * time.Hour
	consolidatedStrengthBoost    = 1.2
	consolidatedDecayRate        = 0.01
	consolidationEdgeStrength    = 0.9
)

// ConsolidationResult reports what one consolidation cycle did (spec.md
// §4.9: candidates_identified, memories_consolidated, errors).
type ConsolidationResult struct {
	TotalEpisodic int `json:"total_episodic"`
	Consolidated  int `json:"consolidated"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
}

// Consolidator implements spec.md §4.9: episodic memories whose access
// pattern crosses a consolidation-score threshold are promoted into a
// semantic twin - a new memory one hierarchy level down, re-encoded and
// inserted into the vector store, linked back to its episodic source by a
// "consolidation" edge. Promotion is driven purely by the access-pattern
// score; the LLM is an optional enrichment, never a gate.
type Consolidator struct {
	store     domain.MetadataStore
	vectors   domain.VectorStore
	encoder   domain.Encoder
	llm       domain.LLMClient
	threshold float64
	logger    *zap.Logger

	mu       sync.Mutex // consolidate_memories is never concurrent with itself (spec.md §5)
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewConsolidator(store domain.MetadataStore, vectors domain.VectorStore, encoder domain.Encoder, llm domain.LLMClient, threshold float64, logger *zap.Logger) *Consolidator {
	return &Consolidator{
		store:     store,
		vectors:   vectors,
		encoder:   encoder,
		llm:       llm,
		threshold: threshold,
		logger:    logger,
		interval:  defaultConsolidationInterval,
		stopCh:    make(chan struct{}),
	}
}

func (c *Consolidator) SetInterval(d time.Duration) {
	c.interval = d
}

// Start begins the background consolidation worker.
func (c *Consolidator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.logger.Info("consolidator started", zap.Duration("interval", c.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
				result, err := c.Run(ctx)
				cancel()
				if err != nil {
					c.logger.Error("consolidation cycle failed", zap.Error(err))
					continue
				}
				if result.Consolidated > 0 {
					c.logger.Info("consolidation cycle complete",
						zap.Int("total_episodic", result.TotalEpisodic),
						zap.Int("consolidated", result.Consolidated),
						zap.Int("failed", result.Failed),
						zap.Int("skipped", result.Skipped))
				}
			case <-c.stopCh:
				c.logger.Info("consolidator stopped")
				return
			}
		}
	}()
}

// Stop halts the background consolidation worker.
func (c *Consolidator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// Run evaluates every episodic memory not yet consolidated and promotes the
// ones whose access-pattern consolidation score meets the threshold
// (spec.md §4.9's `consolidate_memories`). Serialized via c.mu: concurrent
// calls never interleave their writes.
func (c *Consolidator) Run(ctx context.Context) (*ConsolidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := &ConsolidationResult{}

	episodes, err := c.store.GetMemoriesByType(ctx, domain.MemoryTypeEpisodic)
	if err != nil {
		return nil, fmt.Errorf("list episodic memories: %w", err)
	}
	result.TotalEpisodic = len(episodes)

	now := time.Now()
	for i := range episodes {
		ep := &episodes[i]
		if ep.ConsolidationStatus == domain.ConsolidationConsolidated {
			continue
		}
		if ep.AccessCount < minAccessCountForCandidacy {
			result.Skipped++
			continue
		}
		if now.Sub(ep.LastAccessed) < consolidationCooldown {
			result.Skipped++
			continue
		}

		pattern, err := c.accessPattern(ctx, ep.ID)
		if err != nil {
			c.logger.Debug("failed to build access pattern", zap.String("memory_id", ep.ID), zap.Error(err))
			result.Failed++
			continue
		}

		if pattern.ConsolidationScore(now) < c.threshold {
			result.Skipped++
			continue
		}

		if err := c.promote(ctx, ep); err != nil {
			c.logger.Warn("promotion failed", zap.String("memory_id", ep.ID), zap.Error(err))
			result.Failed++
			continue
		}
		result.Consolidated++
	}

	return result, nil
}

func (c *Consolidator) accessPattern(ctx context.Context, memoryID string) (domain.MemoryAccessPattern, error) {
	since := time.Now().Add(-30 * 24 * time.Hour)
	events, err := c.store.GetAccessEvents(ctx, memoryID, since)
	if err != nil {
		return domain.MemoryAccessPattern{}, err
	}
	accesses := make([]time.Time, len(events))
	for i, e := range events {
		accesses[i] = e.AccessedAt
	}
	return domain.MemoryAccessPattern{MemoryID: memoryID, Accesses: accesses}, nil
}

// promote creates a semantic twin one level down (L2 episode -> L1 context,
// typically) from the episodic source, links it back with a "consolidation"
// edge, and marks the source consumed.
func (c *Consolidator) promote(ctx context.Context, episodic *domain.Memory) error {
	content := episodic.Content
	if c.llm != nil {
		if summary, err := c.llm.Summarize(ctx, episodic.Content); err == nil && summary != "" {
			content = summary
		} else if err != nil {
			c.logger.Debug("llm summarize failed, using raw content", zap.Error(err))
		}
	}

	score, err := c.accessPattern(ctx, episodic.ID)
	if err != nil {
		return fmt.Errorf("rebuild access pattern: %w", err)
	}
	consolidationScore := score.ConsolidationScore(time.Now())

	semanticLevel := episodic.Level
	if semanticLevel > domain.LevelConcept {
		semanticLevel--
	}

	newStrength := float64(episodic.Strength) * consolidatedStrengthBoost
	if newStrength > 1 {
		newStrength = 1
	}

	semantic := &domain.Memory{
		ID:                  consolidatedID(episodic.ID),
		Content:             content,
		Level:               semanticLevel,
		MemoryType:          domain.MemoryTypeSemantic,
		Dimensions:          episodic.Dimensions,
		Timestamp:           time.Now(),
		LastAccessed:        time.Now(),
		Strength:            float32(newStrength),
		ImportanceScore:     float32(consolidationScore),
		DecayRate:           consolidatedDecayRate,
		ConsolidationStatus: domain.ConsolidationNone,
		ParentID:            episodic.ID,
		Tags:                episodic.Tags,
		Metadata:            map[string]any{"source_type": string(domain.SourceStoreMemory), "project_id": projectIDFromMetadata(episodic)},
	}

	vector, err := c.encoder.Encode(ctx, content)
	if err != nil {
		return fmt.Errorf("encode semantic twin: %w", err)
	}
	semantic.Embedding = vector

	if err := c.store.StoreMemory(ctx, semantic); err != nil {
		return fmt.Errorf("store semantic twin: %w", err)
	}
	if err := c.vectors.StoreVector(ctx, projectIDFromMetadata(semantic), semantic.ID, vector, memoryPayload(semantic)); err != nil {
		c.logger.Warn("failed to index semantic twin vector", zap.String("memory_id", semantic.ID), zap.Error(err))
	}

	if _, err := c.store.AddConnection(ctx, episodic.ID, semantic.ID, consolidationEdgeStrength, domain.RelationConsolidation); err != nil {
		c.logger.Debug("failed to link consolidation edge", zap.Error(err))
	}

	episodic.ConsolidationStatus = domain.ConsolidationConsolidated
	if err := c.store.UpdateMemory(ctx, episodic); err != nil {
		return fmt.Errorf("mark episodic consolidated: %w", err)
	}
	return nil
}

func consolidatedID(episodicID string) string {
	return "consolidation::" + episodicID
}

// projectIDFromMetadata resolves which VectorStore collection namespace a
// memory belongs to. Populated by the Coordinator at store_experience/
// load_memories_from_source time.
func projectIDFromMetadata(m *domain.Memory) string {
	if m.Metadata == nil {
		return ""
	}
	if p, ok := m.Metadata["project_id"].(string); ok {
		return p
	}
	return ""
}

func memoryPayload(m *domain.Memory) map[string]any {
	return map[string]any{
		"level":         int(m.Level),
		"content":       m.Content,
		"timestamp":     m.Timestamp.Format(time.RFC3339),
		"last_accessed": m.LastAccessed.Format(time.RFC3339),
		"memory_type":   string(m.MemoryType),
	}
}
