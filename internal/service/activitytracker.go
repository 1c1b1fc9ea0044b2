package service

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActivityTracker computes a blended "how active is this repo right now"
// scalar in [0,1] from two signals (spec.md §4.4): git commit rate over a
// sliding window, and memory access rate over the same window. DecayEngine
// turns this into its activity_multiplier term - a hot repo decays faster,
// a dormant one decays slower.
//
// There is no git client library anywhere in the example corpus, so this
// shells out to the system git binary via os/exec; that is the only
// reasonable way to read commit history without vendoring a full git
// implementation.
type ActivityTracker struct {
	repoPath      string
	window        time.Duration
	cacheTTL      time.Duration
	maxCommits    float64
	maxAccesses   float64
	commitWeight  float64
	accessWeight  float64
	logger        *zap.Logger
	accessFunc    func(ctx context.Context) (int, error)

	mu       sync.Mutex
	cached   float64
	cachedAt time.Time
}

func NewActivityTracker(repoPath string, window, cacheTTL time.Duration, maxCommitsPerDay, maxAccessesPerDay, commitWeight, accessWeight float64, accessFunc func(ctx context.Context) (int, error), logger *zap.Logger) *ActivityTracker {
	return &ActivityTracker{
		repoPath:     repoPath,
		window:       window,
		cacheTTL:     cacheTTL,
		maxCommits:   maxCommitsPerDay,
		maxAccesses:  maxAccessesPerDay,
		commitWeight: commitWeight,
		accessWeight: accessWeight,
		logger:       logger,
		accessFunc:   accessFunc,
	}
}

// Activity returns the cached activity scalar in [0,1], recomputing it if
// the cache has gone stale (spec.md §4.4):
//
//	git_component    = min(1, commits_in_window  / (max_commits_per_day  * window_days))
//	access_component = min(1, accesses_in_window / (max_accesses_per_day * window_days))
//	activity         = commit_weight*git_component + access_weight*access_component
func (t *ActivityTracker) Activity(ctx context.Context) float64 {
	t.mu.Lock()
	if time.Since(t.cachedAt) < t.cacheTTL && !t.cachedAt.IsZero() {
		v := t.cached
		t.mu.Unlock()
		return v
	}
	t.mu.Unlock()

	gitComponent := t.gitComponent(ctx)
	accessComponent := t.accessComponent(ctx)

	activity := t.commitWeight*gitComponent + t.accessWeight*accessComponent
	if activity < 0 {
		activity = 0
	}
	if activity > 1 {
		activity = 1
	}

	t.mu.Lock()
	t.cached = activity
	t.cachedAt = time.Now()
	t.mu.Unlock()

	return activity
}

func (t *ActivityTracker) windowDays() float64 {
	days := t.window.Hours() / 24
	if days <= 0 {
		days = 1
	}
	return days
}

// gitComponent returns commits-in-window normalized against
// max_commits_per_day * window_days.
func (t *ActivityTracker) gitComponent(ctx context.Context) float64 {
	if t.repoPath == "" {
		return 0
	}
	since := time.Now().Add(-t.window).Format("2006-01-02")
	cmd := exec.CommandContext(ctx, "git", "-C", t.repoPath, "rev-list", "--count", "HEAD", "--since="+since)
	out, err := cmd.Output()
	if err != nil {
		t.logger.Debug("git commit count failed", zap.Error(err))
		return 0
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	saturation := t.maxCommits * t.windowDays()
	if saturation <= 0 {
		return 0
	}
	component := float64(count) / saturation
	if component > 1 {
		component = 1
	}
	return component
}

// accessComponent returns accesses-in-window normalized against
// max_accesses_per_day * window_days.
func (t *ActivityTracker) accessComponent(ctx context.Context) float64 {
	if t.accessFunc == nil {
		return 0
	}
	count, err := t.accessFunc(ctx)
	if err != nil {
		t.logger.Debug("access rate lookup failed", zap.Error(err))
		return 0
	}
	saturation := t.maxAccesses * t.windowDays()
	if saturation <= 0 {
		return 0
	}
	component := float64(count) / saturation
	if component > 1 {
		component = 1
	}
	return component
}
