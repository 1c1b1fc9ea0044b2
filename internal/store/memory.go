package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// MetadataStore is the pgx-backed durable store of memory records,
// connection edges (see graph.go), the bridge-discovery cache, and
// retrieval statistics. One process, multi-reader/single-writer: writes are
// serialized by Postgres row locks, reads run concurrently (spec.md §4.1,
// §5).
type MetadataStore struct {
	db *pgxpool.Pool
}

func NewMetadataStore(db *pgxpool.Pool) *MetadataStore {
	return &MetadataStore{db: db}
}

func (s *MetadataStore) StoreMemory(ctx context.Context, m *Memory) error {
	return store(ctx, s.db, m)
}

// Memory is a type alias kept local so method receivers below read
// naturally; it is identical to domain.Memory.
type Memory = domain.Memory

func store(ctx context.Context, db *pgxpool.Pool, m *domain.Memory) error {
	dimsBlob, err := json.Marshal(m.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	metaBlob, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tagsBlob, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.LastAccessed.IsZero() {
		m.LastAccessed = m.Timestamp
	}

	_, err = db.Exec(ctx,
		`INSERT INTO memories (
			id, level, content, dimensions_blob, embedding_blob,
			timestamp, last_accessed, access_count, importance_score,
			parent_id, memory_type, decay_rate, consolidation_status,
			tags_blob, metadata_blob, strength
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		 ON CONFLICT (id) DO UPDATE SET
			level = EXCLUDED.level,
			content = EXCLUDED.content,
			dimensions_blob = EXCLUDED.dimensions_blob,
			embedding_blob = EXCLUDED.embedding_blob,
			last_accessed = EXCLUDED.last_accessed,
			access_count = EXCLUDED.access_count,
			importance_score = EXCLUDED.importance_score,
			parent_id = EXCLUDED.parent_id,
			memory_type = EXCLUDED.memory_type,
			decay_rate = EXCLUDED.decay_rate,
			consolidation_status = EXCLUDED.consolidation_status,
			tags_blob = EXCLUDED.tags_blob,
			metadata_blob = EXCLUDED.metadata_blob,
			strength = EXCLUDED.strength`,
		m.ID, int(m.Level), m.Content, dimsBlob, embeddingBlob(m.Embedding),
		m.Timestamp, m.LastAccessed, m.AccessCount, m.ImportanceScore,
		nullableString(m.ParentID), string(m.MemoryType), m.DecayRate, string(m.ConsolidationStatus),
		tagsBlob, metaBlob, m.Strength,
	)
	if err != nil {
		return fmt.Errorf("store memory: %w", err)
	}
	return nil
}

func (s *MetadataStore) RetrieveMemory(ctx context.Context, id string) (*domain.Memory, error) {
	row := s.db.QueryRow(ctx, selectMemoryColumns+` FROM memories WHERE id = $1`, id)
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MetadataStore) UpdateMemory(ctx context.Context, m *domain.Memory) error {
	return store(ctx, s.db, m)
}

func (s *MetadataStore) DeleteMemory(ctx context.Context, id string) (bool, error) {
	if _, err := s.db.Exec(ctx, `DELETE FROM memory_connections WHERE source_id = $1 OR target_id = $1`, id); err != nil {
		return false, fmt.Errorf("cascade delete connections: %w", err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM bridge_cache WHERE bridge_id = $1`, id); err != nil {
		return false, fmt.Errorf("cascade delete bridge cache: %w", err)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MetadataStore) GetMemoriesByLevel(ctx context.Context, level domain.HierarchyLevel) ([]domain.Memory, error) {
	rows, err := s.db.Query(ctx, selectMemoryColumns+` FROM memories WHERE level = $1 ORDER BY timestamp DESC`, int(level))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MetadataStore) GetMemoriesByType(ctx context.Context, typ domain.MemoryType) ([]domain.Memory, error) {
	rows, err := s.db.Query(ctx, selectMemoryColumns+` FROM memories WHERE memory_type = $1`, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MetadataStore) GetMemoriesBySourcePath(ctx context.Context, path string) ([]domain.Memory, error) {
	if path == "" {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		selectMemoryColumns+` FROM memories WHERE metadata_blob->>'source_path' = $1 ORDER BY strength DESC, access_count DESC`,
		path,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MetadataStore) DeleteMemoriesBySourcePath(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	rows, err := s.db.Query(ctx, `SELECT id FROM memories WHERE metadata_blob->>'source_path' = $1`, path)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var deleted int
	for _, id := range ids {
		ok, err := s.DeleteMemory(ctx, id)
		if err != nil {
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

func (s *MetadataStore) RecordAccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO access_events (memory_id, accessed_at) VALUES ($1, $2)`,
		id, at,
	)
	return err
}

func (s *MetadataStore) GetAccessEvents(ctx context.Context, id string, since time.Time) ([]domain.AccessEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT memory_id, accessed_at FROM access_events WHERE memory_id = $1 AND accessed_at >= $2 ORDER BY accessed_at ASC`,
		id, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var e domain.AccessEvent
		if err := rows.Scan(&e.MemoryID, &e.AccessedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *MetadataStore) PutBridgeCacheEntry(ctx context.Context, e domain.BridgeCacheEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO bridge_cache (query_hash, bridge_id, bridge_score, novelty, connection_potential, created_at)
		 VALUES ($1,$2,$3,$4,$5,NOW())
		 ON CONFLICT (query_hash, bridge_id) DO UPDATE SET
			bridge_score = EXCLUDED.bridge_score,
			novelty = EXCLUDED.novelty,
			connection_potential = EXCLUDED.connection_potential`,
		e.QueryHash, e.BridgeID, e.BridgeScore, e.Novelty, e.ConnectionPotential,
	)
	return err
}

func (s *MetadataStore) GetBridgeCache(ctx context.Context, queryHash string) ([]domain.BridgeCacheEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT query_hash, bridge_id, bridge_score, novelty, connection_potential, created_at
		 FROM bridge_cache WHERE query_hash = $1 ORDER BY bridge_score DESC`,
		queryHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.BridgeCacheEntry
	for rows.Next() {
		var e domain.BridgeCacheEntry
		if err := rows.Scan(&e.QueryHash, &e.BridgeID, &e.BridgeScore, &e.Novelty, &e.ConnectionPotential, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *MetadataStore) RecordRetrievalStat(ctx context.Context, st domain.RetrievalStat) error {
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO retrieval_stats (query_hash, memory_id, retrieval_type, success_score, timestamp)
		 VALUES ($1,$2,$3,$4,$5)`,
		st.QueryHash, st.MemoryID, st.RetrievalType, st.SuccessScore, st.Timestamp,
	)
	return err
}

func (s *MetadataStore) GetRetrievalStats(ctx context.Context, queryHash string) ([]domain.RetrievalStat, error) {
	rows, err := s.db.Query(ctx,
		`SELECT query_hash, memory_id, retrieval_type, success_score, timestamp
		 FROM retrieval_stats WHERE query_hash = $1 ORDER BY timestamp DESC`,
		queryHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.RetrievalStat
	for rows.Next() {
		var s2 domain.RetrievalStat
		if err := rows.Scan(&s2.QueryHash, &s2.MemoryID, &s2.RetrievalType, &s2.SuccessScore, &s2.Timestamp); err != nil {
			return nil, err
		}
		stats = append(stats, s2)
	}
	return stats, rows.Err()
}

// CountAccessEventsSince returns how many access events were recorded across
// every memory since the given time - the project-wide signal
// service.ActivityTracker blends with git commit rate (spec.md §4.4).
func (s *MetadataStore) CountAccessEventsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM access_events WHERE accessed_at >= $1`, since).Scan(&count)
	return count, err
}

const selectMemoryColumns = `SELECT
	id, level, content, dimensions_blob, embedding_blob,
	timestamp, last_accessed, access_count, importance_score,
	parent_id, memory_type, decay_rate, consolidation_status,
	tags_blob, metadata_blob, strength`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*domain.Memory, error) {
	var m domain.Memory
	var dimsBlob, embBlob, tagsBlob, metaBlob []byte
	var levelInt int
	var parentID *string
	var memType, consolStatus string

	err := row.Scan(
		&m.ID, &levelInt, &m.Content, &dimsBlob, &embBlob,
		&m.Timestamp, &m.LastAccessed, &m.AccessCount, &m.ImportanceScore,
		&parentID, &memType, &m.DecayRate, &consolStatus,
		&tagsBlob, &metaBlob, &m.Strength,
	)
	if err != nil {
		return nil, err
	}

	m.Level = domain.HierarchyLevel(levelInt)
	m.MemoryType = domain.MemoryType(memType)
	m.ConsolidationStatus = domain.ConsolidationStatus(consolStatus)
	if parentID != nil {
		m.ParentID = *parentID
	}
	if len(dimsBlob) > 0 {
		if err := json.Unmarshal(dimsBlob, &m.Dimensions); err != nil {
			return nil, fmt.Errorf("unmarshal dimensions: %w", err)
		}
	}
	if len(embBlob) > 0 {
		if err := json.Unmarshal(embBlob, &m.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	if len(tagsBlob) > 0 {
		if err := json.Unmarshal(tagsBlob, &m.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metaBlob) > 0 {
		if err := json.Unmarshal(metaBlob, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}

func scanMemories(rows pgx.Rows) ([]domain.Memory, error) {
	var out []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func embeddingBlob(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
