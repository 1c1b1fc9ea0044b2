package domain

import (
	"testing"
	"time"
)

func TestMemoryAccessPattern_Frequency(t *testing.T) {
	now := time.Now()
	p := MemoryAccessPattern{
		MemoryID: "m1",
		Accesses: []time.Time{
			now.Add(-10 * 24 * time.Hour), // outside the 7-day window
			now.Add(-2 * time.Hour),
			now.Add(-1 * time.Hour),
		},
	}

	got := p.Frequency(now)
	want := 2.0 / 168.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Frequency() = %v, want %v", got, want)
	}
}

func TestMemoryAccessPattern_Recency(t *testing.T) {
	now := time.Now()

	t.Run("no accesses", func(t *testing.T) {
		p := MemoryAccessPattern{}
		if got := p.Recency(now); got != 0 {
			t.Errorf("Recency() = %v, want 0", got)
		}
	})

	t.Run("recent access scores close to 1", func(t *testing.T) {
		p := MemoryAccessPattern{Accesses: []time.Time{now.Add(-1 * time.Minute)}}
		if got := p.Recency(now); got < 0.99 {
			t.Errorf("Recency() = %v, want close to 1", got)
		}
	})

	t.Run("old access scores close to 0", func(t *testing.T) {
		p := MemoryAccessPattern{Accesses: []time.Time{now.Add(-1000 * time.Hour)}}
		if got := p.Recency(now); got > 0.01 {
			t.Errorf("Recency() = %v, want close to 0", got)
		}
	})
}

func TestMemoryAccessPattern_Distribution(t *testing.T) {
	now := time.Now()

	t.Run("fewer than 2 accesses scores 0", func(t *testing.T) {
		p := MemoryAccessPattern{Accesses: []time.Time{now}}
		if got := p.Distribution(); got != 0 {
			t.Errorf("Distribution() = %v, want 0", got)
		}
	})

	t.Run("regularly spaced accesses score high", func(t *testing.T) {
		p := MemoryAccessPattern{Accesses: []time.Time{
			now.Add(-72 * time.Hour),
			now.Add(-48 * time.Hour),
			now.Add(-24 * time.Hour),
			now,
		}}
		if got := p.Distribution(); got < 0.9 {
			t.Errorf("Distribution() = %v, want close to 1 for evenly spaced accesses", got)
		}
	})

	t.Run("irregularly spaced accesses score lower", func(t *testing.T) {
		regular := MemoryAccessPattern{Accesses: []time.Time{
			now.Add(-72 * time.Hour),
			now.Add(-48 * time.Hour),
			now.Add(-24 * time.Hour),
			now,
		}}
		irregular := MemoryAccessPattern{Accesses: []time.Time{
			now.Add(-500 * time.Hour),
			now.Add(-400 * time.Hour),
			now.Add(-10 * time.Hour),
			now,
		}}
		if irregular.Distribution() >= regular.Distribution() {
			t.Errorf("irregular distribution %v should score lower than regular distribution %v", irregular.Distribution(), regular.Distribution())
		}
	})
}

func TestMemoryAccessPattern_ConsolidationScore(t *testing.T) {
	now := time.Now()

	t.Run("no accesses scores 0", func(t *testing.T) {
		p := MemoryAccessPattern{}
		if got := p.ConsolidationScore(now); got != 0 {
			t.Errorf("ConsolidationScore() = %v, want 0", got)
		}
	})

	t.Run("frequent, recent, regular accesses score high", func(t *testing.T) {
		p := MemoryAccessPattern{Accesses: []time.Time{
			now.Add(-72 * time.Hour),
			now.Add(-48 * time.Hour),
			now.Add(-24 * time.Hour),
			now.Add(-time.Hour),
		}}
		if got := p.ConsolidationScore(now); got <= 0.3 {
			t.Errorf("ConsolidationScore() = %v, want a meaningfully positive score", got)
		}
	})

	t.Run("frequency component is capped at 1", func(t *testing.T) {
		accesses := make([]time.Time, 0, 200)
		for i := 0; i < 200; i++ {
			accesses = append(accesses, now.Add(-time.Duration(i)*time.Minute))
		}
		p := MemoryAccessPattern{Accesses: accesses}
		got := p.ConsolidationScore(now)
		if got > 1.0 {
			t.Errorf("ConsolidationScore() = %v, should never exceed 1.0", got)
		}
	})
}
