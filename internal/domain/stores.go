package domain

import (
	"context"
	"time"
)

// MetadataStore is the durable key/value+relational store of memory
// records, connection edges, a bridge-discovery cache, and retrieval
// statistics (spec.md §4.1). Concrete adapter: internal/store.MetadataStore
// (pgx-backed).
type MetadataStore interface {
	StoreMemory(ctx context.Context, m *Memory) error
	RetrieveMemory(ctx context.Context, id string) (*Memory, error)
	UpdateMemory(ctx context.Context, m *Memory) error
	DeleteMemory(ctx context.Context, id string) (bool, error)
	GetMemoriesByLevel(ctx context.Context, level HierarchyLevel) ([]Memory, error)
	GetMemoriesByType(ctx context.Context, typ MemoryType) ([]Memory, error)
	GetMemoriesBySourcePath(ctx context.Context, path string) ([]Memory, error)
	DeleteMemoriesBySourcePath(ctx context.Context, path string) (int, error)

	RecordAccess(ctx context.Context, id string, at time.Time) error
	GetAccessEvents(ctx context.Context, id string, since time.Time) ([]AccessEvent, error)

	// ConnectionGraph is backed by the same store (spec.md §4.3: "backed by
	// MetadataStore").
	ConnectionGraph

	PutBridgeCacheEntry(ctx context.Context, e BridgeCacheEntry) error
	GetBridgeCache(ctx context.Context, queryHash string) ([]BridgeCacheEntry, error)
	RecordRetrievalStat(ctx context.Context, s RetrievalStat) error
	GetRetrievalStats(ctx context.Context, queryHash string) ([]RetrievalStat, error)
}

// BridgeCacheEntry is a row of the bridge_cache table (spec.md §6).
type BridgeCacheEntry struct {
	QueryHash           string    `json:"query_hash"`
	BridgeID            string    `json:"bridge_id"`
	BridgeScore         float32   `json:"bridge_score"`
	Novelty             float32   `json:"novelty"`
	ConnectionPotential float32   `json:"connection_potential"`
	CreatedAt           time.Time `json:"created_at"`
}

// RetrievalStat is a row of the retrieval_stats table (spec.md §6).
type RetrievalStat struct {
	QueryHash     string    `json:"query_hash"`
	MemoryID      string    `json:"memory_id"`
	RetrievalType string    `json:"retrieval_type"`
	SuccessScore  *float32  `json:"success_score,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SearchResult is a single hit from a VectorStore k-NN query.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// VectorStore is the per-project, per-level vector index (spec.md §4.2).
// Collections are named "<project>_concepts" / "<project>_contexts" /
// "<project>_episodes"; ProjectID identifies the project namespace a given
// operation targets.
type VectorStore interface {
	StoreVector(ctx context.Context, projectID, id string, v []float32, payload map[string]any) error
	SearchSimilar(ctx context.Context, projectID string, v []float32, k int, filters map[string]any) ([]SearchResult, error)
	SearchLevel(ctx context.Context, projectID string, level HierarchyLevel, v []float32, k int, scoreThreshold *float32) ([]SearchResult, error)
	DeleteVector(ctx context.Context, projectID, id string) error
	UpdateVector(ctx context.Context, projectID, id string, v []float32, payload map[string]any) error
	DeleteProjectCollections(ctx context.Context, projectID string) error
	ListProjectCollections(ctx context.Context, projectID string) ([]string, error)
}

// Encoder is the external text-to-vector collaborator (out of scope per
// spec.md §1; only this narrow contract matters to the core engine).
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbeddingDimension() int
}

// LLMClient is an optional enrichment collaborator the Consolidator may use
// to summarize episodic content into a tighter semantic twin. Never required
// for correctness of consolidation itself (spec.md §4.9's promotion rule is
// purely score-driven).
type LLMClient interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Loader is the duck-typed source-loader capability set (spec.md §6). No
// concrete loader ships with the core engine; implementations (markdown
// chunkers, git history miners) live outside this module's scope.
type Loader interface {
	ValidateSource(ctx context.Context, path string) (bool, error)
	GetSupportedExtensions() []string
	LoadFromSource(ctx context.Context, path string, kwargs map[string]any) ([]Memory, error)
	ExtractConnections(ctx context.Context, memories []Memory) ([]LoaderConnection, error)
}

// LoaderConnection is a connection tuple a Loader extracts alongside its
// memories.
type LoaderConnection struct {
	SourceID string
	TargetID string
	Strength float32
	Type     RelationType
}

// UpsertCapable is the optional Loader capability; a Loader without it is
// treated as if UpsertMemories returned the not-implemented sentinel.
type UpsertCapable interface {
	UpsertMemories(ctx context.Context, memories []Memory) (bool, error)
}

// ErrUpsertNotImplemented is the sentinel default for loaders that don't
// implement UpsertCapable.
var ErrUpsertNotImplemented = notImplementedError{}

type notImplementedError struct{}

func (notImplementedError) Error() string { return "upsert_memories not implemented" }
