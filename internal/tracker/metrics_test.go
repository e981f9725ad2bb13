package tracker

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateStats(t *testing.T) {
	stats := calculateStats([]float64{4, 1, 3, 2, 5})

	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.Equal(t, 3.0, stats.Median)
	assert.InDelta(t, 3.0, stats.Mean, 1e-12)
	assert.InDelta(t, 1.41421356, stats.StdDev, 1e-6)
	assert.InDelta(t, 4.8, stats.P95, 1e-9)

	assert.Equal(t, TimingStats{}, calculateStats(nil))
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		data []float64
		p    float64
		want float64
	}{
		{nil, 50, 0},
		{[]float64{7}, 99, 7},
		{[]float64{1, 2}, 50, 1.5},
		{[]float64{1, 2, 3}, 100, 3},
	}

	for _, tt := range tests {
		if got := percentile(tt.data, tt.p); got != tt.want {
			t.Errorf("percentile(%v, %v): want %v, got %v", tt.data, tt.p, tt.want, got)
		}
	}
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.record(TickResult{})
	s.record(TickResult{Processed: true, NewSample: true, State: StateTriggered, Amplitude: 80, Elapsed: 2 * time.Millisecond})
	s.record(TickResult{Processed: true, State: StateSampling, Amplitude: 10, Elapsed: 4 * time.Millisecond})
	s.record(TickResult{Processed: true, State: StateHolding, Amplitude: 90, Elapsed: 3 * time.Millisecond})
	s.record(TickResult{Processed: true, Err: errors.New("bad chunk")})

	summary := s.Summary(7)
	assert.Equal(t, 4, summary.Ticks)
	assert.Equal(t, 1, summary.Commits)
	assert.Equal(t, 1, summary.BelowGate)
	assert.Equal(t, 1, summary.HeldTicks)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 90, summary.MaxAmplitude)
	assert.Equal(t, uint64(7), summary.DroppedChunks)
	assert.InDelta(t, 3.0, summary.ProcessingTime.Mean, 1e-9)
}

func TestStatsMemoryIsBounded(t *testing.T) {
	s := NewStats()
	const ticks = 3 * timingWindow
	for i := 1; i <= ticks; i++ {
		s.record(TickResult{Processed: true, State: StateSampling, Elapsed: time.Duration(i) * time.Millisecond})
	}

	assert.Len(t, s.processing.recent, timingWindow)

	pt := s.Summary(0).ProcessingTime
	assert.Equal(t, ticks, pt.Count)
	assert.InDelta(t, 1.0, pt.Min, 1e-9)
	assert.InDelta(t, float64(ticks), pt.Max, 1e-9)
	assert.InDelta(t, float64(ticks+1)/2, pt.Mean, 1e-6)
	// population std dev of 1..n
	assert.InDelta(t, math.Sqrt(float64(ticks*ticks-1)/12), pt.StdDev, 1e-6)

	// percentiles come from the last timingWindow ticks
	first := float64(ticks - timingWindow + 1)
	assert.InDelta(t, (first+float64(ticks))/2, pt.Median, 1e-6)
	assert.GreaterOrEqual(t, pt.P95, pt.Median)
	assert.LessOrEqual(t, pt.P99, pt.Max)
}
