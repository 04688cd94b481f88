package httpclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLatencyTracker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		windowSize     int
		minSamples     int
		wantWindowSize int
		wantMinSamples int
	}{
		{
			name:           "given zero values, then defaults apply",
			wantWindowSize: 100,
			wantMinSamples: 10,
		},
		{
			name:           "given min samples above the window, then it is capped",
			windowSize:     5,
			minSamples:     20,
			wantWindowSize: 5,
			wantMinSamples: 5,
		},
		{
			name:           "given explicit values, then they are kept",
			windowSize:     50,
			minSamples:     3,
			wantWindowSize: 50,
			wantMinSamples: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := NewLatencyTracker(tt.windowSize, tt.minSamples)
			assert.Equal(t, tt.wantWindowSize, tracker.windowSize)
			assert.Equal(t, tt.wantMinSamples, tracker.minSamples)
		})
	}
}

func TestLatencyTracker_Percentile(t *testing.T) {
	t.Parallel()

	t.Run("given too few samples, then no answer", func(t *testing.T) {
		t.Parallel()

		tracker := NewLatencyTracker(10, 3)
		tracker.Record("GET api.test/users", time.Millisecond)

		_, ok := tracker.Percentile("GET api.test/users", 0.5)
		assert.False(t, ok)
		_, ok = tracker.Percentile("GET api.test/unknown", 0.5)
		assert.False(t, ok)
	})

	t.Run("given enough samples, then percentiles come from the sorted window", func(t *testing.T) {
		t.Parallel()

		tracker := NewLatencyTracker(10, 1)
		for _, ms := range []int{50, 10, 40, 20, 30} {
			tracker.Record("GET api.test/users", time.Duration(ms)*time.Millisecond)
		}

		tests := []struct {
			p    float64
			want time.Duration
		}{
			{p: 0, want: 10 * time.Millisecond},
			{p: 0.5, want: 30 * time.Millisecond},
			{p: 1, want: 50 * time.Millisecond},
			{p: 2, want: 50 * time.Millisecond},
			{p: -1, want: 10 * time.Millisecond},
		}
		for _, tt := range tests {
			got, ok := tracker.Percentile("GET api.test/users", tt.p)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got, "p=%v", tt.p)
		}
	})

	t.Run("given a full window, then the oldest samples are replaced", func(t *testing.T) {
		t.Parallel()

		tracker := NewLatencyTracker(3, 1)
		for _, ms := range []int{100, 100, 100, 1, 2, 3} {
			tracker.Record("GET api.test/users", time.Duration(ms)*time.Millisecond)
		}

		assert.Equal(t, 3, tracker.Count("GET api.test/users"))
		got, ok := tracker.Percentile("GET api.test/users", 1)
		assert.True(t, ok)
		assert.Equal(t, 3*time.Millisecond, got)
	})
}

func TestLatencyTracker_Reset(t *testing.T) {
	t.Parallel()

	tracker := NewLatencyTracker(10, 1)
	tracker.Record("GET api.test/users", time.Millisecond)
	tracker.Reset()

	assert.Equal(t, 0, tracker.Count("GET api.test/users"))
}

func TestLatencyTracker_Concurrent(t *testing.T) {
	t.Parallel()

	tracker := NewLatencyTracker(20, 1)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				tracker.Record("GET api.test/users", time.Duration(i*j)*time.Microsecond)
				tracker.Percentile("GET api.test/users", 0.9)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, tracker.Count("GET api.test/users"))
}
