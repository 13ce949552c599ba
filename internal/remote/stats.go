package remote

import (
	"slices"
	"sync"
	"time"
)

type fetchSample struct {
	at     time.Time
	millis int64
	failed bool
}

// StatsSnapshot summarizes the fetches inside the stats window.
type StatsSnapshot struct {
	Fetches  int     `json:"fetches"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
}

// Stats keeps remote fetch latencies for a rolling window.
type Stats struct {
	mu      sync.Mutex
	samples []fetchSample
	window  time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window}
}

// Record adds one fetch attempt.
func (s *Stats) Record(millis int64, failed bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.samples = append(s.samples, fetchSample{at: now, millis: max(millis, 0), failed: failed})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(time.Now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Fetches: len(s.samples)}
	millis := make([]int64, len(s.samples))
	var sum int64
	for i, sm := range s.samples {
		millis[i] = sm.millis
		sum += sm.millis
		if sm.failed {
			snap.Failures++
		}
	}
	slices.Sort(millis)
	snap.MinMs = millis[0]
	snap.MaxMs = millis[len(millis)-1]
	snap.AvgMs = float64(sum) / float64(len(millis))
	snap.P50Ms = percentile(millis, 50)
	snap.P95Ms = percentile(millis, 95)
	return snap
}

// expire drops samples older than the window. Samples are appended in
// time order, so the expired ones form a prefix.
func (s *Stats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	s.samples = s.samples[i:]
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []int64, pct float64) float64 {
	idx := float64(len(sorted)-1) * pct / 100
	lo := int(idx)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	w := idx - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[lo+1])-float64(sorted[lo]))*w
}
