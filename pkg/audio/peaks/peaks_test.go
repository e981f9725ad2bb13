package peaks

import (
	"math"
	"testing"

	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, level float64) []float64 {
	mag := make([]float64, n)
	for i := range mag {
		mag[i] = level
	}
	return mag
}

func TestDetectTriangularPeak(t *testing.T) {
	mag := flat(512, -50)
	mag[99] = -20
	mag[100] = 10
	mag[101] = -20

	locs := Detect(mag, -60)
	require.Equal(t, []int{100}, locs)

	iploc, ipmag := Interpolate(mag, locs)
	require.Len(t, iploc, 1)
	assert.InDelta(t, 100.0, iploc[0], 1.0)
	assert.GreaterOrEqual(t, ipmag[0], 10.0)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		mag       []float64
		threshold float64
		want      []int
	}{
		{"monotonic decreasing", []float64{0, -1, -2, -3, -4, -5}, -100, nil},
		{"monotonic increasing", []float64{-5, -4, -3, -2, -1, 0}, -100, nil},
		{"edge maxima ignored", []float64{10, 0, 0, 0, 10}, -100, nil},
		{"tie excluded", []float64{-50, -10, -10, -50}, -100, nil},
		{"below threshold", []float64{-50, -30, -50}, -20, nil},
		{"equal to threshold", []float64{-50, -30, -50}, -30, nil},
		{"two peaks ascending", []float64{-50, -10, -50, -60, -20, -60}, -40, []int{1, 4}},
		{"too short", []float64{0, 1}, -100, nil},
	}

	for _, tt := range tests {
		got := Detect(tt.mag, tt.threshold)
		if !assert.Equal(t, tt.want, got) {
			t.Errorf("Detect(%s): want %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestInterpolate(t *testing.T) {
	// samples of y = -(x-10.25)^2 have their vertex at 10.25
	mag := make([]float64, 20)
	for i := range mag {
		d := float64(i) - 10.25
		mag[i] = -d * d
	}

	iploc, ipmag := Interpolate(mag, []int{10})
	assert.InDelta(t, 10.25, iploc[0], 1e-9)
	assert.InDelta(t, 0.0, ipmag[0], 1e-9)
}

func TestInterpolateDegenerate(t *testing.T) {
	tests := []struct {
		name string
		mag  []float64
		loc  int
	}{
		{"linear triple", []float64{0, 1, 2, 3}, 1},
		{"flat triple", []float64{5, 5, 5}, 1},
		{"first bin", []float64{9, 1, 2}, 0},
		{"last bin", []float64{1, 2, 9}, 2},
	}

	for _, tt := range tests {
		iploc, ipmag := Interpolate(tt.mag, []int{tt.loc})
		if iploc[0] != float64(tt.loc) || ipmag[0] != tt.mag[tt.loc] {
			t.Errorf("Interpolate(%s): want (%d, %v), got (%v, %v)", tt.name, tt.loc, tt.mag[tt.loc], iploc[0], ipmag[0])
		}
		assert.False(t, math.IsNaN(iploc[0]) || math.IsInf(iploc[0], 0))
	}
}

func TestInterpolatePhase(t *testing.T) {
	phase := []float64{0, 1, 2, 4}
	got := InterpolatePhase(phase, []float64{0.5, 2.5, -1, 7})
	assert.InDeltaSlice(t, []float64{0.5, 3, 0, 4}, got, 1e-12)
	assert.Len(t, InterpolatePhase(nil, []float64{1}), 1)
}

func TestDetectorFindsSine(t *testing.T) {
	const (
		sampleRate = 11025
		windowLen  = 16384
	)

	analyzer, err := spectral.NewAnalyzer(spectral.Config{
		SampleRate:   sampleRate,
		WindowLength: windowLen,
	}, nil)
	require.NoError(t, err)

	chunk := make([]float64, windowLen)
	for i := range chunk {
		chunk[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / sampleRate)
	}
	frame, err := analyzer.Analyze(chunk)
	require.NoError(t, err)

	detector := NewDetector(sampleRate, analyzer.FFTSize())
	found := detector.FindFrame(frame, spectral.ThresholdDB(50))
	require.Len(t, found, 1)

	assert.InDelta(t, 1000.0, found[0].FrequencyHz, analyzer.Resolution())
	assert.Greater(t, found[0].MagnitudeDB, -10.0)
	assert.Less(t, found[0].MagnitudeDB, 0.5)

	strongest, ok := found.Strongest()
	assert.True(t, ok)
	assert.Equal(t, found[0], strongest)
}

func TestDetectorEmpty(t *testing.T) {
	detector := NewDetector(11025, 1024)

	got := detector.Find(flat(513, -120), spectral.ThresholdDB(10))
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, detector.FindFrame(nil, 0))
}
