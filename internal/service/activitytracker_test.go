package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityTracker_Activity_ZeroSignalsIsZero(t *testing.T) {
	accessFunc := func(ctx context.Context) (int, error) { return 0, nil }
	tr := NewActivityTracker("", 7*24*time.Hour, time.Minute, 3, 100, 0.6, 0.4, accessFunc, testLogger())

	got := tr.Activity(context.Background())
	assert.Equal(t, 0.0, got, "no commits and no accesses should be zero activity")
}

func TestActivityTracker_Activity_AccessComponentSaturatesAtOne(t *testing.T) {
	accessFunc := func(ctx context.Context) (int, error) { return 100000, nil }
	tr := NewActivityTracker("", 7*24*time.Hour, time.Minute, 3, 100, 0.6, 0.4, accessFunc, testLogger())

	got := tr.Activity(context.Background())
	assert.InDelta(t, 0.4, got, 0.0001, "saturating access activity with no git signal contributes only its weight")
}

func TestActivityTracker_Activity_AccessFuncErrorTreatedAsZeroActivity(t *testing.T) {
	accessFunc := func(ctx context.Context) (int, error) { return 0, errors.New("store unavailable") }
	tr := NewActivityTracker("", 7*24*time.Hour, time.Minute, 3, 100, 0.6, 0.4, accessFunc, testLogger())

	got := tr.Activity(context.Background())
	assert.Equal(t, 0.0, got)
}

func TestActivityTracker_Activity_CachesWithinTTL(t *testing.T) {
	calls := 0
	accessFunc := func(ctx context.Context) (int, error) {
		calls++
		return calls * 100, nil
	}
	tr := NewActivityTracker("", 7*24*time.Hour, time.Hour, 3, 100, 0.6, 0.4, accessFunc, testLogger())

	first := tr.Activity(context.Background())
	second := tr.Activity(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "a second call within the cache TTL should not recompute")
}

func TestActivityMultiplier_ThresholdTable(t *testing.T) {
	assert.Equal(t, activityHighMultiplier, activityMultiplier(0.71), "activity above 0.7 decays fastest")
	assert.Equal(t, activityNormalMultiplier, activityMultiplier(0.5), "activity between the thresholds is unchanged")
	assert.Equal(t, activityLowMultiplier, activityMultiplier(0.1), "activity below 0.2 decays slowest")
	assert.Equal(t, activityNormalMultiplier, activityMultiplier(0.7), "boundary value is not 'above' high threshold")
	assert.Equal(t, activityNormalMultiplier, activityMultiplier(0.2), "boundary value is not 'below' low threshold")
}
