package domain

import (
	"math"
	"time"
)

// MemoryAccessPattern is the sliding 30-day window of access timestamps for
// one memory, grounded on original_source's dual_memory.py
// MemoryAccessPattern. It feeds both the Consolidator's consolidation_score
// (spec.md §4.9) and the ActivityTracker's access component (spec.md §4.4).
type MemoryAccessPattern struct {
	MemoryID string
	Accesses []time.Time // ascending, within the trailing window
}

// Frequency returns accesses-in-last-week / 168 hours.
func (p MemoryAccessPattern) Frequency(now time.Time) float64 {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	var n int
	for _, a := range p.Accesses {
		if a.After(weekAgo) {
			n++
		}
	}
	return float64(n) / 168.0
}

// Recency returns exp(-hours_since_last_access / 168).
func (p MemoryAccessPattern) Recency(now time.Time) float64 {
	if len(p.Accesses) == 0 {
		return 0
	}
	last := p.Accesses[len(p.Accesses)-1]
	hours := now.Sub(last).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / 168.0)
}

// Distribution returns 1 - min(1, sigma(intervals)/mu(intervals)) for at
// least two accesses (so at least one interval); 0 otherwise. A low
// coefficient of variation means regularly-spaced access, which this rewards.
func (p MemoryAccessPattern) Distribution() float64 {
	if len(p.Accesses) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(p.Accesses)-1)
	for i := 1; i < len(p.Accesses); i++ {
		intervals = append(intervals, p.Accesses[i].Sub(p.Accesses[i-1]).Hours())
	}
	var sum float64
	for _, iv := range intervals {
		sum += iv
	}
	mu := sum / float64(len(intervals))
	if mu <= 0 {
		return 0
	}
	var varSum float64
	for _, iv := range intervals {
		d := iv - mu
		varSum += d * d
	}
	sigma := math.Sqrt(varSum / float64(len(intervals)))
	ratio := sigma / mu
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// ConsolidationScore combines frequency/recency/distribution per spec.md
// §4.9: 0.4*min(1,frequency) + 0.3*recency + 0.3*distribution.
func (p MemoryAccessPattern) ConsolidationScore(now time.Time) float64 {
	freq := p.Frequency(now)
	if freq > 1 {
		freq = 1
	}
	return 0.4*freq + 0.3*p.Recency(now) + 0.3*p.Distribution()
}
