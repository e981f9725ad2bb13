package spectral

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdDB(t *testing.T) {
	tests := []struct {
		percent int
		want    float64
	}{
		{0, -100},
		{50, -50},
		{100, 0},
	}

	for _, tt := range tests {
		if got := ThresholdDB(tt.percent); got != tt.want {
			t.Errorf("ThresholdDB(%d): want %v, got %v", tt.percent, tt.want, got)
		}
	}
}

func TestAmplitude(t *testing.T) {
	tests := []struct {
		name string
		db   []float64
		want int
	}{
		{"empty", nil, 0},
		{"below floor", []float64{-313, -200}, 0},
		{"above ceiling", []float64{-50, 12}, 100},
		{"truncates", []float64{-90, -40.5, -70}, 59},
	}

	for _, tt := range tests {
		if got := Amplitude(tt.db); got != tt.want {
			t.Errorf("Amplitude(%s): want %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestToDB(t *testing.T) {
	db := ToDB([]float64{1, 0.1, 0})
	require.Len(t, db, 3)
	assert.InDelta(t, 0.0, db[0], 1e-12)
	assert.InDelta(t, -20.0, db[1], 1e-12)
	assert.InDelta(t, -313.07, db[2], 0.01)
}

func TestBinConversions(t *testing.T) {
	assert.InDelta(t, 1000.0, BinFrequency(1486.08, 11025, 16384), 0.01)
	assert.Equal(t, 1486, FrequencyBin(1000, 11025, 16384))
	assert.Equal(t, 0, FrequencyBin(0, 11025, 16384))
}

func TestParseWindowType(t *testing.T) {
	tests := []struct {
		in   string
		want WindowType
	}{
		{"", WindowBlackman},
		{"Blackman", WindowBlackman},
		{"hanning", WindowHann},
		{" hamming ", WindowHamming},
		{"blackmanharris", WindowBlackmanHarris},
		{"boxcar", WindowRectangular},
	}

	for _, tt := range tests {
		got, err := ParseWindowType(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseWindowType(%q): want %v, got %v (%v)", tt.in, tt.want, got, err)
		}
	}

	_, err := ParseWindowType("gaussian")
	assert.True(t, errors.Is(err, ErrUnknownWindowType))
}

func TestNewWindow(t *testing.T) {
	for _, kind := range []WindowType{
		WindowBlackman, WindowBlackmanHarris, WindowHann, WindowHamming,
		WindowBartlett, WindowWelch, WindowRectangular,
	} {
		w, err := NewWindow(kind, 512)
		require.NoError(t, err, "NewWindow(%s)", kind)
		assert.Len(t, w, 512)
	}

	_, err := NewWindow(WindowHann, 0)
	assert.True(t, IsConfigurationError(err))

	_, err = NewWindow("triangle", 64)
	assert.True(t, errors.Is(err, ErrUnknownWindowType))
}
