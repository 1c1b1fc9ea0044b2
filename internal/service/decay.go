package service

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

// profileMultiplier is the per-content-type decay profile table (spec.md
// §4.5): a raw git commit churns fastest, documentation and consolidated
// session lessons are treated as durable and decay far slower.
var profileMultiplier = map[domain.SourceType]float64{
	domain.SourceGitCommit:     1.2,
	domain.SourceSessionLesson: 0.2,
	domain.SourceStoreMemory:   1.0,
	domain.SourceDocumentation: 0.2,
	domain.SourceManualEntry:   1.0,
}

// levelFallbackProfile is used when a memory carries no recognized
// metadata.source_type, keyed by hierarchy level instead.
var levelFallbackProfile = map[domain.HierarchyLevel]float64{
	domain.LevelConcept: 0.3,
	domain.LevelContext: 0.8,
	domain.LevelEpisode: 1.0,
}

// activityHighThreshold/activityLowThreshold and their multipliers are the
// threshold table spec.md §4.5 uses to turn ActivityTracker's raw [0,1]
// activity scalar into activity_multiplier: a hot repo decays faster (more
// churn means more to forget), a dormant one decays slower.
const (
	activityHighThreshold  = 0.7
	activityLowThreshold   = 0.2
	activityHighMultiplier = 2.0
	activityLowMultiplier  = 0.1
	activityNormalMultiplier = 1.0
)

func activityMultiplier(activity float64) float64 {
	switch {
	case activity > activityHighThreshold:
		return activityHighMultiplier
	case activity < activityLowThreshold:
		return activityLowMultiplier
	default:
		return activityNormalMultiplier
	}
}

// DecayResult reports what happened to a single memory during one decay
// pass.
type DecayResult struct {
	MemoryID       string  `json:"memory_id"`
	OldStrength    float32 `json:"old_strength"`
	NewStrength    float32 `json:"new_strength"`
	EffectiveRate  float64 `json:"effective_rate"`
	ActivityFactor float64 `json:"activity_factor"`
	Expired        bool    `json:"expired"`
}

// BatchDecayResult summarizes one full decay cycle across every memory at a
// given level.
type BatchDecayResult struct {
	Processed int            `json:"processed"`
	Decayed   int            `json:"decayed"`
	Expired   int            `json:"expired"`
	Errors    int            `json:"errors"`
	Details   []DecayResult  `json:"details,omitempty"`
}

// DecayEngine implements spec.md §4.5: strength decays exponentially toward
// zero at a rate that depends on content-type profile and recent activity,
// and expiration (episodic memories only) is a separate, subsequent step
// checked against age, effective strength, and importance independently.
type DecayEngine struct {
	store    domain.MetadataStore
	activity *ActivityTracker
	logger   *zap.Logger

	BaseRate        float64
	StrengthFloor   float64
	ImportanceFloor float64
	MaxRetentionDays int

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayEngine(store domain.MetadataStore, activity *ActivityTracker, baseRate, strengthFloor, importanceFloor float64, maxRetentionDays int, interval time.Duration, logger *zap.Logger) *DecayEngine {
	return &DecayEngine{
		store:            store,
		activity:         activity,
		logger:           logger,
		BaseRate:         baseRate,
		StrengthFloor:    strengthFloor,
		ImportanceFloor:  importanceFloor,
		MaxRetentionDays: maxRetentionDays,
		interval:         interval,
		stopCh:           make(chan struct{}),
	}
}

func (e *DecayEngine) SetInterval(d time.Duration) {
	e.interval = d
}

// Start begins the background decay worker.
func (e *DecayEngine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.logger.Info("decay engine started", zap.Duration("interval", e.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				e.runCycle(ctx)
				cancel()
			case <-e.stopCh:
				e.logger.Info("decay engine stopped")
				return
			}
		}
	}()
}

// Stop halts the background decay worker.
func (e *DecayEngine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *DecayEngine) runCycle(ctx context.Context) {
	result := &BatchDecayResult{}
	for _, level := range []domain.HierarchyLevel{domain.LevelConcept, domain.LevelContext, domain.LevelEpisode} {
		memories, err := e.store.GetMemoriesByLevel(ctx, level)
		if err != nil {
			e.logger.Error("failed to list memories for decay", zap.Int("level", int(level)), zap.Error(err))
			continue
		}

		for i := range memories {
			mem := &memories[i]
			dr := e.Apply(ctx, mem)
			result.Processed++

			if dr.Expired {
				if mem.MemoryType == domain.MemoryTypeEpisodic {
					if _, err := e.store.DeleteMemory(ctx, mem.ID); err != nil {
						e.logger.Debug("failed to delete expired memory", zap.String("memory_id", mem.ID), zap.Error(err))
						result.Errors++
						continue
					}
					result.Expired++
					continue
				}
			}

			if math.Abs(float64(dr.NewStrength-dr.OldStrength)) < 0.0001 {
				continue
			}
			mem.Strength = dr.NewStrength
			if err := e.store.UpdateMemory(ctx, mem); err != nil {
				e.logger.Debug("failed to persist decayed strength", zap.String("memory_id", mem.ID), zap.Error(err))
				result.Errors++
				continue
			}
			result.Decayed++
		}
	}

	if result.Decayed > 0 || result.Expired > 0 {
		e.logger.Info("decay cycle complete",
			zap.Int("processed", result.Processed),
			zap.Int("decayed", result.Decayed),
			zap.Int("expired", result.Expired),
			zap.Int("errors", result.Errors))
	}
}

// Apply computes the new strength for a single memory per spec.md §4.5:
//
//	effective_rate = base_decay * profile_multiplier * activity_multiplier
//	episodic: strength = stored_strength * exp(-effective_rate * hours/24)
//	semantic: strength = stored_strength * exp(-effective_rate * days/30)
//
// It does not persist the result; callers decide whether to write it back
// or treat it as an expiration.
func (e *DecayEngine) Apply(ctx context.Context, mem *domain.Memory) DecayResult {
	result := DecayResult{MemoryID: mem.ID, OldStrength: mem.Strength}

	profile := e.resolveProfile(mem)
	activityFactor := 1.0
	if e.activity != nil {
		activityFactor = activityMultiplier(e.activity.Activity(ctx))
	}
	result.ActivityFactor = activityFactor

	rate := e.BaseRate * profile * activityFactor
	if mem.DecayRate > 0 {
		rate = float64(mem.DecayRate) * profile * activityFactor
	}
	result.EffectiveRate = rate

	elapsed := time.Since(mem.LastAccessed)
	var decayFactor float64
	if mem.MemoryType == domain.MemoryTypeSemantic {
		decayFactor = math.Exp(-rate * elapsed.Hours() / 24 / 30)
	} else {
		decayFactor = math.Exp(-rate * elapsed.Hours() / 24)
	}

	newStrength := float64(mem.Strength) * decayFactor
	if newStrength < 0 {
		newStrength = 0
	}
	result.NewStrength = float32(newStrength)

	// Cleanup is episodic-only (spec.md §4.5) and eligible if any of three
	// independent conditions hold: the memory has simply aged out, its
	// effective strength has bottomed out, or it was never important enough
	// to keep regardless of strength.
	if mem.MemoryType == domain.MemoryTypeEpisodic {
		ageDays := time.Since(mem.Timestamp).Hours() / 24
		switch {
		case e.MaxRetentionDays > 0 && ageDays > float64(e.MaxRetentionDays):
			result.Expired = true
		case newStrength < e.StrengthFloor:
			result.Expired = true
		case float64(mem.ImportanceScore) < e.ImportanceFloor:
			result.Expired = true
		}
	}
	return result
}

func (e *DecayEngine) resolveProfile(mem *domain.Memory) float64 {
	if st := mem.SourceTypeOf(); st != "" {
		if p, ok := profileMultiplier[st]; ok {
			return p
		}
	}
	if p, ok := levelFallbackProfile[mem.Level]; ok {
		return p
	}
	return 1.0
}
