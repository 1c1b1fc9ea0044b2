package domain

import "time"

// HierarchyLevel places a memory in the three-level concept/context/episode
// hierarchy. It doubles as the VectorStore collection selector.
type HierarchyLevel int

const (
	LevelConcept HierarchyLevel = 0
	LevelContext HierarchyLevel = 1
	LevelEpisode HierarchyLevel = 2
)

func ValidLevel(l int) bool {
	return l == int(LevelConcept) || l == int(LevelContext) || l == int(LevelEpisode)
}

// MemoryType distinguishes fast-decaying episodic experiences from
// slow-decaying, consolidated semantic knowledge.
type MemoryType string

const (
	MemoryTypeEpisodic MemoryType = "episodic"
	MemoryTypeSemantic MemoryType = "semantic"
)

func ValidMemoryType(t string) bool {
	switch MemoryType(t) {
	case MemoryTypeEpisodic, MemoryTypeSemantic:
		return true
	}
	return false
}

// ConsolidationStatus marks whether an episodic memory has already produced
// a semantic twin.
type ConsolidationStatus string

const (
	ConsolidationNone         ConsolidationStatus = "none"
	ConsolidationConsolidated ConsolidationStatus = "consolidated"
)

// SourceType is the recognized set of content-type keys the DecayEngine looks
// up in its profile-multiplier table. Anything else falls back to a
// level-derived key, then to SourceManualEntry.
type SourceType string

const (
	SourceGitCommit     SourceType = "git_commit"
	SourceSessionLesson SourceType = "session_lesson"
	SourceStoreMemory   SourceType = "store_memory"
	SourceDocumentation SourceType = "documentation"
	SourceManualEntry   SourceType = "manual_entry"
)

func ValidSourceType(s string) bool {
	switch SourceType(s) {
	case SourceGitCommit, SourceSessionLesson, SourceStoreMemory, SourceDocumentation, SourceManualEntry:
		return true
	}
	return false
}

// Dimensions holds the fixed-size cognitive feature vectors the original
// system stores as variably-shaped per-category tensors. Each category gets
// its own fixed-length float32 array here.
type Dimensions struct {
	Emotional  [4]float32 `json:"emotional"`
	Temporal   [3]float32 `json:"temporal"`
	Contextual [6]float32 `json:"contextual"`
	Social     [3]float32 `json:"social"`
}

// Memory is a single stored experience, concept, or consolidated belief.
type Memory struct {
	ID                  string              `json:"id"`
	Content             string              `json:"content"`
	Level               HierarchyLevel      `json:"level"`
	MemoryType          MemoryType          `json:"memory_type"`
	Dimensions          Dimensions          `json:"dimensions"`
	Embedding           []float32           `json:"-"`
	Timestamp           time.Time           `json:"timestamp"`
	LastAccessed        time.Time           `json:"last_accessed"`
	AccessCount         int                 `json:"access_count"`
	Strength            float32             `json:"strength"`
	ImportanceScore     float32             `json:"importance_score"`
	DecayRate           float32             `json:"decay_rate"`
	ConsolidationStatus ConsolidationStatus `json:"consolidation_status"`
	ParentID            string              `json:"parent_id,omitempty"`
	Tags                []string            `json:"tags,omitempty"`
	Metadata            map[string]any      `json:"metadata,omitempty"`
}

// SourceTypeOf resolves metadata.source_type, validating it against the
// recognized set; empty string means "unset" so callers can fall back to a
// level-derived key per DecayEngine's resolution order.
func (m *Memory) SourceTypeOf() SourceType {
	if m.Metadata == nil {
		return ""
	}
	raw, ok := m.Metadata["source_type"]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok || !ValidSourceType(s) {
		return ""
	}
	return SourceType(s)
}

func (m *Memory) SourcePath() string {
	if m.Metadata == nil {
		return ""
	}
	if p, ok := m.Metadata["source_path"].(string); ok {
		return p
	}
	return ""
}

// Touch records an access: bumps AccessCount and LastAccessed. Called by the
// Coordinator on every memory returned from retrieval.
func (m *Memory) Touch(now time.Time) {
	m.AccessCount++
	m.LastAccessed = now
}

// MemoryWithScore pairs a memory with a retrieval-time similarity score, used
// by SimilaritySearch and the Coordinator's fallback path.
type MemoryWithScore struct {
	Memory
	Similarity    float32 `json:"similarity"`
	Distance      float32 `json:"distance"`
	RecencyScore  float32 `json:"recency_score"`
	CombinedScore float32 `json:"combined_score"`
}

// AccessEvent is a single recorded access timestamp, the atom of a
// MemoryAccessPattern sliding window (grounded on original_source's
// dual_memory.py MemoryAccessPattern, needed by both the Consolidator's
// consolidation_score and the ActivityTracker's access component).
type AccessEvent struct {
	MemoryID   string    `json:"memory_id"`
	AccessedAt time.Time `json:"accessed_at"`
}
