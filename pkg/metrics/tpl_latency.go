// Package metrics provides in-process latency tracking with percentiles.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Latency Tracker with P50/P95/P99 Percentiles
// =============================================================================

// LatencyTracker keeps a sliding window of recent latency samples.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []int64 // microseconds
	maxSamples int
	errors     int64
	total      int64
}

// NewLatencyTracker creates a tracker keeping the last windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record records one measurement and whether the call failed.
func (lt *LatencyTracker) Record(d time.Duration, failed bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.maxSamples {
		// Drop the oldest 10% at once to avoid shifting on every insert
		drop := lt.maxSamples / 10
		if drop < 1 {
			drop = 1
		}
		lt.samples = append(lt.samples[:0], lt.samples[drop:]...)
	}
	lt.samples = append(lt.samples, d.Microseconds())
	lt.total++
	if failed {
		lt.errors++
	}
}

// Stats returns latency statistics for the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	sorted := make([]int64, len(lt.samples))
	copy(sorted, lt.samples)
	total, errs := lt.total, lt.errors
	lt.mu.Unlock()

	stats := LatencyStats{Count: total, Errors: errs, Samples: len(sorted)}
	if len(sorted) == 0 {
		return stats
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	stats.MinMs = microsToMs(sorted[0])
	stats.MaxMs = microsToMs(sorted[n-1])
	stats.AvgMs = microsToMs(sum / int64(n))
	stats.P50Ms = microsToMs(percentile(sorted, 0.50))
	stats.P95Ms = microsToMs(percentile(sorted, 0.95))
	stats.P99Ms = microsToMs(percentile(sorted, 0.99))
	return stats
}

func percentile(sorted []int64, p float64) int64 {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func microsToMs(v int64) float64 {
	return float64(v) / 1000
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int64   `json:"count"`
	Errors  int64   `json:"errors"`
	Samples int     `json:"samples"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
}

// =============================================================================
// Per-operation registry
// =============================================================================

// LatencyRegistry manages one tracker per operation name.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

// NewLatencyRegistry creates a new latency registry.
func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   windowSize,
	}
}

// Record records a latency for the given operation.
func (r *LatencyRegistry) Record(op string, d time.Duration, failed bool) {
	r.mu.RLock()
	tracker, ok := r.trackers[op]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[op]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[op] = tracker
		}
		r.mu.Unlock()
	}

	tracker.Record(d, failed)
}

// Stats returns statistics for one operation.
func (r *LatencyRegistry) Stats(op string) LatencyStats {
	r.mu.RLock()
	tracker, ok := r.trackers[op]
	r.mu.RUnlock()

	if !ok {
		return LatencyStats{}
	}
	return tracker.Stats()
}

// AllStats returns statistics for every recorded operation.
func (r *LatencyRegistry) AllStats() map[string]LatencyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]LatencyStats, len(r.trackers))
	for name, tracker := range r.trackers {
		result[name] = tracker.Stats()
	}
	return result
}
