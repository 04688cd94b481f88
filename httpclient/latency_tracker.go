package httpclient

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a sliding window of latencies per endpoint and
// answers percentile queries for adaptive hedging. An endpoint is
// "METHOD host/path".
//
// The tracker is safe for concurrent use.
type LatencyTracker struct {
	mu         sync.RWMutex
	windows    map[string]*latencyWindow
	windowSize int
	minSamples int
}

// latencyWindow is a ring buffer of samples.
type latencyWindow struct {
	samples []time.Duration
	next    int
	full    bool
}

func (w *latencyWindow) add(d time.Duration) {
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *latencyWindow) len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

// NewLatencyTracker creates a tracker keeping windowSize samples per
// endpoint and answering once minSamples are recorded. Non-positive
// values default to 100 and 10.
func NewLatencyTracker(windowSize, minSamples int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 100
	}
	if minSamples <= 0 {
		minSamples = 10
	}
	return &LatencyTracker{
		windows:    make(map[string]*latencyWindow),
		windowSize: windowSize,
		minSamples: min(minSamples, windowSize),
	}
}

// Record adds a latency sample for endpoint.
func (t *LatencyTracker) Record(endpoint string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[endpoint]
	if !ok {
		w = &latencyWindow{samples: make([]time.Duration, t.windowSize)}
		t.windows[endpoint] = w
	}
	w.add(latency)
}

// Percentile returns the p-th percentile latency of endpoint, p in [0, 1].
// ok is false until enough samples are recorded.
func (t *LatencyTracker) Percentile(endpoint string, p float64) (time.Duration, bool) {
	t.mu.RLock()
	w, ok := t.windows[endpoint]
	if !ok || w.len() < t.minSamples {
		t.mu.RUnlock()
		return 0, false
	}
	samples := slices.Clone(w.samples[:w.len()])
	t.mu.RUnlock()

	slices.Sort(samples)
	p = max(0, min(p, 1))
	return samples[int(float64(len(samples)-1)*p)], true
}

// Count returns the number of samples held for endpoint.
func (t *LatencyTracker) Count(endpoint string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if w, ok := t.windows[endpoint]; ok {
		return w.len()
	}
	return 0
}

// Reset forgets every endpoint.
func (t *LatencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]*latencyWindow)
}
