package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// fakeStore is an in-memory domain.MetadataStore used across this package's
// tests, mirroring the teacher's hand-rolled mock-store style (e.g.
// mockMemoryStore in the original decay_test.go) rather than a mocking
// framework.
type fakeStore struct {
	memories map[string]*domain.Memory
	edges    map[string][]domain.ConnectionEdge
	access   map[string][]domain.AccessEvent
	bridges  map[string][]domain.BridgeCacheEntry
	stats    map[string][]domain.RetrievalStat
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memories: make(map[string]*domain.Memory),
		edges:    make(map[string][]domain.ConnectionEdge),
		access:   make(map[string][]domain.AccessEvent),
		bridges:  make(map[string][]domain.BridgeCacheEntry),
		stats:    make(map[string][]domain.RetrievalStat),
	}
}

func (f *fakeStore) StoreMemory(ctx context.Context, m *domain.Memory) error {
	cp := *m
	f.memories[m.ID] = &cp
	return nil
}

func (f *fakeStore) RetrieveMemory(ctx context.Context, id string) (*domain.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) UpdateMemory(ctx context.Context, m *domain.Memory) error {
	cp := *m
	f.memories[m.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteMemory(ctx context.Context, id string) (bool, error) {
	if _, ok := f.memories[id]; !ok {
		return false, nil
	}
	delete(f.memories, id)
	return true, nil
}

func (f *fakeStore) GetMemoriesByLevel(ctx context.Context, level domain.HierarchyLevel) ([]domain.Memory, error) {
	var out []domain.Memory
	for _, m := range f.memories {
		if m.Level == level {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMemoriesByType(ctx context.Context, typ domain.MemoryType) ([]domain.Memory, error) {
	var out []domain.Memory
	for _, m := range f.memories {
		if m.MemoryType == typ {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetMemoriesBySourcePath(ctx context.Context, path string) ([]domain.Memory, error) {
	var out []domain.Memory
	for _, m := range f.memories {
		if m.SourcePath() == path {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteMemoriesBySourcePath(ctx context.Context, path string) (int, error) {
	n := 0
	for id, m := range f.memories {
		if m.SourcePath() == path {
			delete(f.memories, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RecordAccess(ctx context.Context, id string, at time.Time) error {
	f.access[id] = append(f.access[id], domain.AccessEvent{MemoryID: id, AccessedAt: at})
	return nil
}

func (f *fakeStore) GetAccessEvents(ctx context.Context, id string, since time.Time) ([]domain.AccessEvent, error) {
	var out []domain.AccessEvent
	for _, e := range f.access[id] {
		if !e.AccessedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func canon(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func (f *fakeStore) AddConnection(ctx context.Context, sourceID, targetID string, strength float32, typ domain.RelationType) (bool, error) {
	a, b := canon(sourceID, targetID)
	if strength < domain.DefaultStrengthFloor {
		strength = domain.DefaultStrengthFloor
	}
	for i, e := range f.edges[a] {
		if e.TargetID == b || (e.SourceID == b) {
			if strength > e.Strength {
				f.edges[a][i].Strength = strength
			}
			return true, nil
		}
	}
	f.edges[a] = append(f.edges[a], domain.ConnectionEdge{SourceID: a, TargetID: b, Strength: strength, Type: typ, CreatedAt: time.Now()})
	return true, nil
}

func (f *fakeStore) GetConnections(ctx context.Context, id string, minStrength float32) ([]domain.Memory, error) {
	var out []domain.Memory
	for _, e := range f.allEdgesFor(id) {
		if e.Strength < minStrength {
			continue
		}
		other := e.TargetID
		if other == id {
			other = e.SourceID
		}
		if m, ok := f.memories[other]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) allEdgesFor(id string) []domain.ConnectionEdge {
	var out []domain.ConnectionEdge
	for _, list := range f.edges {
		for _, e := range list {
			if e.SourceID == id || e.TargetID == id {
				out = append(out, e)
			}
		}
	}
	return out
}

func (f *fakeStore) GetEdges(ctx context.Context, id string, minStrength float32) ([]domain.ConnectionEdge, error) {
	var out []domain.ConnectionEdge
	for _, e := range f.allEdgesFor(id) {
		if e.Strength >= minStrength {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateConnectionStrength(ctx context.Context, sourceID, targetID string, newStrength float32) (bool, error) {
	a, b := canon(sourceID, targetID)
	for i, e := range f.edges[a] {
		if e.TargetID == b {
			f.edges[a][i].Strength = newStrength
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RemoveConnection(ctx context.Context, sourceID, targetID string) (bool, error) {
	a, b := canon(sourceID, targetID)
	list := f.edges[a]
	for i, e := range list {
		if e.TargetID == b {
			f.edges[a] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ActivateConnection(ctx context.Context, sourceID, targetID string) (bool, error) {
	a, b := canon(sourceID, targetID)
	for i, e := range f.edges[a] {
		if e.TargetID == b {
			f.edges[a][i].ActivationCount++
			now := time.Now()
			f.edges[a][i].LastActivated = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DeleteConnectionsByMemory(ctx context.Context, memoryID string) error {
	for k, list := range f.edges {
		var kept []domain.ConnectionEdge
		for _, e := range list {
			if e.SourceID != memoryID && e.TargetID != memoryID {
				kept = append(kept, e)
			}
		}
		f.edges[k] = kept
	}
	return nil
}

func (f *fakeStore) PutBridgeCacheEntry(ctx context.Context, e domain.BridgeCacheEntry) error {
	f.bridges[e.QueryHash] = append(f.bridges[e.QueryHash], e)
	return nil
}

func (f *fakeStore) GetBridgeCache(ctx context.Context, queryHash string) ([]domain.BridgeCacheEntry, error) {
	return f.bridges[queryHash], nil
}

func (f *fakeStore) RecordRetrievalStat(ctx context.Context, s domain.RetrievalStat) error {
	f.stats[s.QueryHash] = append(f.stats[s.QueryHash], s)
	return nil
}

func (f *fakeStore) GetRetrievalStats(ctx context.Context, queryHash string) ([]domain.RetrievalStat, error) {
	return f.stats[queryHash], nil
}

var errNotFound = fakeNotFoundError{}

type fakeNotFoundError struct{}

func (fakeNotFoundError) Error() string { return "not found" }

// fakeVectorStore is an in-memory domain.VectorStore, one flat slice per
// (project, level) pair, with a brute-force dot-product "cosine" score.
type fakeVectorStore struct {
	rows map[string][]fakeRow
}

type fakeRow struct {
	id      string
	vector  []float32
	payload map[string]any
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{rows: make(map[string][]fakeRow)}
}

func fakeKey(projectID string, level domain.HierarchyLevel) string {
	return projectID + "|" + string(rune('0'+int(level)))
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (sqrt(na) * sqrt(nb)))
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 30; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func (v *fakeVectorStore) levelOf(payload map[string]any) domain.HierarchyLevel {
	if raw, ok := payload["level"]; ok {
		if n, ok := raw.(int); ok {
			return domain.HierarchyLevel(n)
		}
	}
	return domain.LevelContext
}

func (v *fakeVectorStore) StoreVector(ctx context.Context, projectID, id string, vec []float32, payload map[string]any) error {
	key := fakeKey(projectID, v.levelOf(payload))
	v.rows[key] = append(v.rows[key], fakeRow{id: id, vector: vec, payload: payload})
	return nil
}

func (v *fakeVectorStore) SearchSimilar(ctx context.Context, projectID string, vec []float32, k int, filters map[string]any) ([]domain.SearchResult, error) {
	var all []domain.SearchResult
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		hits, _ := v.SearchLevel(ctx, projectID, level, vec, k, nil)
		all = append(all, hits...)
	}
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

func (v *fakeVectorStore) SearchLevel(ctx context.Context, projectID string, level domain.HierarchyLevel, vec []float32, k int, scoreThreshold *float32) ([]domain.SearchResult, error) {
	key := fakeKey(projectID, level)
	var out []domain.SearchResult
	for _, row := range v.rows[key] {
		score := cosine(vec, row.vector)
		if scoreThreshold != nil && score < *scoreThreshold {
			continue
		}
		out = append(out, domain.SearchResult{ID: row.id, Score: score, Payload: row.payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (v *fakeVectorStore) DeleteVector(ctx context.Context, projectID, id string) error {
	for key, rows := range v.rows {
		var kept []fakeRow
		for _, r := range rows {
			if r.id != id {
				kept = append(kept, r)
			}
		}
		v.rows[key] = kept
	}
	return nil
}

func (v *fakeVectorStore) UpdateVector(ctx context.Context, projectID, id string, vec []float32, payload map[string]any) error {
	_ = v.DeleteVector(ctx, projectID, id)
	return v.StoreVector(ctx, projectID, id, vec, payload)
}

func (v *fakeVectorStore) DeleteProjectCollections(ctx context.Context, projectID string) error {
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		delete(v.rows, fakeKey(projectID, level))
	}
	return nil
}

func (v *fakeVectorStore) ListProjectCollections(ctx context.Context, projectID string) ([]string, error) {
	var out []string
	for key := range v.rows {
		out = append(out, key)
	}
	return out, nil
}

// fakeEncoder turns text into a tiny deterministic vector by byte sum, so
// near-identical text yields near-identical vectors without a real provider.
type fakeEncoder struct{ dim int }

func newFakeEncoder() *fakeEncoder { return &fakeEncoder{dim: 8} }

func (e *fakeEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	for i, c := range []byte(text) {
		v[i%e.dim] += float32(c)
	}
	return v, nil
}

func (e *fakeEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Encode(ctx, t)
	}
	return out, nil
}

func (e *fakeEncoder) EmbeddingDimension() int { return e.dim }
