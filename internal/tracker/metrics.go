package tracker

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// TimingStats represents statistical measures of a duration series, in milliseconds.
// Count, Mean, Min, Max and StdDev cover the whole session; the percentiles cover
// the most recent timingWindow ticks.
type TimingStats struct {
	Mean   float64 `json:"mean_ms" yaml:"mean_ms"`
	Median float64 `json:"median_ms" yaml:"median_ms"`
	P95    float64 `json:"p95_ms" yaml:"p95_ms"`
	P99    float64 `json:"p99_ms" yaml:"p99_ms"`
	Min    float64 `json:"min_ms" yaml:"min_ms"`
	Max    float64 `json:"max_ms" yaml:"max_ms"`
	StdDev float64 `json:"std_dev_ms" yaml:"std_dev_ms"`
	Count  int     `json:"count" yaml:"count"`
}

// Summary is the loop activity of a tracker session
type Summary struct {
	Ticks          int         `json:"ticks" yaml:"ticks"`
	Commits        int         `json:"commits" yaml:"commits"`
	HeldTicks      int         `json:"held_ticks" yaml:"held_ticks"`
	BelowGate      int         `json:"below_gate" yaml:"below_gate"`
	Errors         int         `json:"errors" yaml:"errors"`
	DroppedChunks  uint64      `json:"dropped_chunks" yaml:"dropped_chunks"`
	MaxAmplitude   int         `json:"max_amplitude" yaml:"max_amplitude"`
	ProcessingTime TimingStats `json:"processing_time" yaml:"processing_time"`
}

// Stats accumulates per-tick measurements
type Stats struct {
	ticks        int
	commits      int
	held         int
	sampling     int
	errors       int
	maxAmplitude int
	processing   runningTiming
}

// timingWindow bounds the samples kept for percentiles
const timingWindow = 1024

// runningTiming keeps running moments of every sample and a ring of the latest ones
type runningTiming struct {
	count    int
	mean, m2 float64
	min, max float64
	recent   []float64
	next     int
}

func (r *runningTiming) add(v float64) {
	r.count++
	if r.count == 1 {
		r.min, r.max = v, v
	} else {
		r.min = min(r.min, v)
		r.max = max(r.max, v)
	}

	// Welford
	delta := v - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (v - r.mean)

	if len(r.recent) < timingWindow {
		r.recent = append(r.recent, v)
		return
	}
	r.recent[r.next] = v
	r.next = (r.next + 1) % timingWindow
}

func (r *runningTiming) stats() TimingStats {
	if r.count == 0 {
		return TimingStats{}
	}

	stats := calculateStats(r.recent)
	stats.Count = r.count
	stats.Mean = r.mean
	stats.Min, stats.Max = r.min, r.max
	stats.StdDev = math.Sqrt(r.m2 / float64(r.count))
	return sanitizeStats(stats)
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) record(res TickResult) {
	if !res.Processed {
		return
	}
	s.ticks++
	if res.Err != nil {
		s.errors++
		return
	}
	switch {
	case res.NewSample:
		s.commits++
	case res.State == StateHolding:
		s.held++
	case res.State == StateSampling:
		s.sampling++
	}
	s.maxAmplitude = max(s.maxAmplitude, res.Amplitude)
	s.processing.add(float64(res.Elapsed.Microseconds()) / 1000)
}

// Summary calculates the summary with the queue's dropped chunk count
func (s *Stats) Summary(dropped uint64) Summary {
	return Summary{
		Ticks:          s.ticks,
		Commits:        s.commits,
		HeldTicks:      s.held,
		BelowGate:      s.sampling,
		Errors:         s.errors,
		DroppedChunks:  dropped,
		MaxAmplitude:   s.maxAmplitude,
		ProcessingTime: s.processing.stats(),
	}
}

// calculateStats calculates statistical measures for a dataset
func calculateStats(data []float64) TimingStats {
	if len(data) == 0 {
		return TimingStats{}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	stats := TimingStats{
		Count:  len(data),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
		Mean:   stat.Mean(data, nil),
		StdDev: math.Sqrt(stat.PopVariance(data, nil)),
	}

	return sanitizeStats(stats)
}

// sanitizeStats removes infinite and NaN values to prevent JSON serialization errors
func sanitizeStats(stats TimingStats) TimingStats {
	for _, v := range []*float64{&stats.Mean, &stats.Median, &stats.P95, &stats.P99, &stats.Min, &stats.Max, &stats.StdDev} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return stats
}

// percentile calculates the specified percentile of sorted data, interpolating between ranks
func percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100.0) * float64(len(sortedData)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}
