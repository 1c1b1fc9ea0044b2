package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// VectorStore implements domain.VectorStore as dynamically created/dropped
// Postgres tables, one per (project, level) "collection" - spec.md §4.2's
// Qdrant-shaped contract (named "<project>_concepts" / "_contexts" /
// "_episodes", independently creatable/droppable) with no Qdrant client
// anywhere in the example corpus to ground against. Every example repo that
// touches vectors does so through pgx+pgvector-go directly, so collections
// become tables and k-NN becomes an ORDER BY ... <=> ... LIMIT query,
// grounded on the teacher's MemoryStore.Recall (internal/store/memory.go in
// the original).
type VectorStore struct {
	db  *pgxpool.Pool
	dim int
}

func NewVectorStore(db *pgxpool.Pool, dimension int) *VectorStore {
	return &VectorStore{db: db, dim: dimension}
}

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (s *VectorStore) tableName(projectID string, level domain.HierarchyLevel) (string, error) {
	suffix := levelSuffix(level)
	name := projectID + "_" + suffix
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid collection name %q", name)
	}
	return name, nil
}

func levelSuffix(level domain.HierarchyLevel) string {
	switch level {
	case domain.LevelConcept:
		return "concepts"
	case domain.LevelContext:
		return "contexts"
	default:
		return "episodes"
	}
}

func (s *VectorStore) ensureTable(ctx context.Context, table string) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, table, s.dim))
	return err
}

// StoreVector inserts or replaces a vector, creating the collection table on
// first use (spec.md §4.2: collections are created on demand).
func (s *VectorStore) StoreVector(ctx context.Context, projectID, id string, v []float32, payload map[string]any) error {
	table, err := s.collectionTableForAnyLevel(ctx, projectID, payload)
	if err != nil {
		return err
	}
	return s.upsert(ctx, table, id, v, payload)
}

// collectionTableForAnyLevel resolves the table StoreVector should target.
// The level is carried in payload["level"] when known (the Coordinator
// always sets it); UpdateVector resolves the level the same way, and only
// SearchLevel takes it explicitly.
func (s *VectorStore) collectionTableForAnyLevel(ctx context.Context, projectID string, payload map[string]any) (string, error) {
	level := domain.LevelContext
	if raw, ok := payload["level"]; ok {
		if n, ok := raw.(int); ok && domain.ValidLevel(n) {
			level = domain.HierarchyLevel(n)
		}
	}
	table, err := s.tableName(projectID, level)
	if err != nil {
		return "", err
	}
	if err := s.ensureTable(ctx, table); err != nil {
		return "", err
	}
	return table, nil
}

func (s *VectorStore) upsert(ctx context.Context, table, id string, v []float32, payload map[string]any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	vec := pgvector.NewVector(v)
	_, err = s.db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, embedding, payload) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`, table),
		id, vec, blob)
	return err
}

// SearchSimilar searches every level's collection for projectID and merges
// the hits into one list ordered by score, keeping the top k.
func (s *VectorStore) SearchSimilar(ctx context.Context, projectID string, v []float32, k int, filters map[string]any) ([]domain.SearchResult, error) {
	var merged []domain.SearchResult
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		hits, err := s.SearchLevel(ctx, projectID, level, v, k, nil)
		if err != nil {
			continue
		}
		merged = append(merged, hits...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// SearchLevel runs a cosine k-NN query against one project/level collection.
func (s *VectorStore) SearchLevel(ctx context.Context, projectID string, level domain.HierarchyLevel, v []float32, k int, scoreThreshold *float32) ([]domain.SearchResult, error) {
	table, err := s.tableName(projectID, level)
	if err != nil {
		return nil, err
	}
	if !s.tableExists(ctx, table) {
		return nil, nil
	}

	vec := pgvector.NewVector(v)
	query := fmt.Sprintf(`SELECT id, payload, 1 - (embedding <=> $1) AS score FROM %s`, table)
	args := []any{vec}
	if scoreThreshold != nil {
		query += fmt.Sprintf(` WHERE 1 - (embedding <=> $1) >= $%d`, len(args)+1)
		args = append(args, *scoreThreshold)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT $%d`, len(args)+1)
	args = append(args, k)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var id string
		var blob []byte
		var score float32
		if err := rows.Scan(&id, &blob, &score); err != nil {
			return nil, err
		}
		var payload map[string]any
		if len(blob) > 0 {
			_ = json.Unmarshal(blob, &payload)
		}
		results = append(results, domain.SearchResult{ID: id, Score: score, Payload: payload})
	}
	return results, rows.Err()
}

// DeleteVector removes a single vector from whichever level collection(s)
// hold it (a memory's level is fixed at creation, but deletion is defensive
// across all three in case of a stale level tag).
func (s *VectorStore) DeleteVector(ctx context.Context, projectID, id string) error {
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		table, err := s.tableName(projectID, level)
		if err != nil {
			continue
		}
		if !s.tableExists(ctx, table) {
			continue
		}
		if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateVector replaces a vector's embedding/payload, resolving the level
// from payload["level"] the same way StoreVector does.
func (s *VectorStore) UpdateVector(ctx context.Context, projectID, id string, v []float32, payload map[string]any) error {
	table, err := s.collectionTableForAnyLevel(ctx, projectID, payload)
	if err != nil {
		return err
	}
	return s.upsert(ctx, table, id, v, payload)
}

// DeleteProjectCollections drops all three collection tables for a project
// (spec.md §4.2: projects are independently droppable units).
func (s *VectorStore) DeleteProjectCollections(ctx context.Context, projectID string) error {
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		table, err := s.tableName(projectID, level)
		if err != nil {
			continue
		}
		if _, err := s.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return err
		}
	}
	return nil
}

// ListProjectCollections returns the physical table names that currently
// exist for projectID.
func (s *VectorStore) ListProjectCollections(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public' AND tablename LIKE $1`,
		projectID+"\\_%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if _, _, ok := ParseCollectionName(name); ok {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

func (s *VectorStore) tableExists(ctx context.Context, table string) bool {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_tables WHERE schemaname = 'public' AND tablename = $1)`,
		table,
	).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
