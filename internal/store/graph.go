package store

import (
	"context"
	"time"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// AddConnection inserts or strengthens a bidirectional edge between two
// memories. Edges are stored once, keyed (source_id, target_id) with
// source_id < target_id lexically so a lookup from either endpoint finds the
// same row (spec.md §4.3: "lookups are bidirectional").
func (s *MetadataStore) AddConnection(ctx context.Context, sourceID, targetID string, strength float32, typ domain.RelationType) (bool, error) {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	if strength < domain.DefaultStrengthFloor {
		strength = domain.DefaultStrengthFloor
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO memory_connections (source_id, target_id, strength, type, created_at, activation_count)
		 VALUES ($1,$2,$3,$4,NOW(),0)
		 ON CONFLICT (source_id, target_id) DO UPDATE SET
			strength = GREATEST(memory_connections.strength, EXCLUDED.strength),
			type = EXCLUDED.type`,
		a, b, strength, string(typ),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetConnections returns the memories connected to id with edge strength at
// or above minStrength, regardless of which side of the edge id sits on.
func (s *MetadataStore) GetConnections(ctx context.Context, id string, minStrength float32) ([]domain.Memory, error) {
	rows, err := s.db.Query(ctx,
		selectMemoryColumns+` FROM memories m
		 JOIN memory_connections c ON (m.id = c.target_id AND c.source_id = $1)
			OR (m.id = c.source_id AND c.target_id = $1)
		 WHERE c.strength >= $2 AND m.id != $1
		 ORDER BY c.strength DESC`,
		id, minStrength,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetEdges returns the raw edges touching id. SourceID/TargetID reflect
// storage order (lexically smaller id first), not id's position; callers
// needing an id-relative direction compare endpoints against id themselves.
func (s *MetadataStore) GetEdges(ctx context.Context, id string, minStrength float32) ([]domain.ConnectionEdge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT source_id, target_id, strength, type, created_at, last_activated, activation_count
		 FROM memory_connections
		 WHERE (source_id = $1 OR target_id = $1) AND strength >= $2
		 ORDER BY strength DESC`,
		id, minStrength,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.ConnectionEdge
	for rows.Next() {
		var e domain.ConnectionEdge
		var typ string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Strength, &typ, &e.CreatedAt, &e.LastActivated, &e.ActivationCount); err != nil {
			return nil, err
		}
		e.Type = domain.RelationType(typ)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *MetadataStore) UpdateConnectionStrength(ctx context.Context, sourceID, targetID string, newStrength float32) (bool, error) {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE memory_connections SET strength = $3 WHERE source_id = $1 AND target_id = $2`,
		a, b, newStrength,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MetadataStore) RemoveConnection(ctx context.Context, sourceID, targetID string) (bool, error) {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM memory_connections WHERE source_id = $1 AND target_id = $2`, a, b)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ActivateConnection marks an edge as traversed: bumps activation_count and
// stamps last_activated, used by the activation engine (spec.md §4.6) to
// track which edges carry live spreading traffic.
func (s *MetadataStore) ActivateConnection(ctx context.Context, sourceID, targetID string) (bool, error) {
	a, b := sourceID, targetID
	if b < a {
		a, b = b, a
	}
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx,
		`UPDATE memory_connections SET activation_count = activation_count + 1, last_activated = $3
		 WHERE source_id = $1 AND target_id = $2`,
		a, b, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MetadataStore) DeleteConnectionsByMemory(ctx context.Context, memoryID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM memory_connections WHERE source_id = $1 OR target_id = $1`, memoryID)
	return err
}
