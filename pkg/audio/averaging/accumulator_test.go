package averaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
)

func spectrum(values ...float64) []float64 {
	return values
}

func TestNewAccumulatorRange(t *testing.T) {
	for _, n := range []int{0, 1, 10} {
		_, err := NewAccumulator(n)
		assert.NoError(t, err, "NewAccumulator(%d)", n)
	}
	for _, n := range []int{-1, 11} {
		_, err := NewAccumulator(n)
		assert.True(t, errors.Is(err, ErrInvalidMaxCount), "NewAccumulator(%d)", n)
	}
}

func TestAveragingConstantFrameConverges(t *testing.T) {
	acc, err := NewAccumulator(5)
	require.NoError(t, err)

	frame := spectrum(0.001, 0.5, 0.25, 0.01)
	threshold := spectral.ThresholdDB(50)

	for i := 1; i <= 5; i++ {
		c, err := acc.Probe(frame, threshold)
		require.NoError(t, err)
		require.True(t, c.Cleared)
		assert.InDeltaSlice(t, frame, c.AverageLinear, 1e-12)
		require.NoError(t, acc.Commit(c))
		assert.Equal(t, i, acc.Count())
	}

	state := acc.State()
	assert.True(t, state.Complete())
	assert.Equal(t, 5, state.Count)

	// saturated: further frames are refused and change nothing
	_, err = acc.Probe(frame, threshold)
	assert.True(t, errors.Is(err, ErrAveragingComplete))
	triggered, _, err := acc.Accumulate(spectrum(1, 1, 1, 1), threshold)
	assert.False(t, triggered)
	assert.True(t, errors.Is(err, ErrAveragingComplete))
	assert.Equal(t, 5, acc.Count())
	assert.InDeltaSlice(t, spectral.ToDB(frame), acc.Average(), 1e-9)
}

func TestAveragingIsLinear(t *testing.T) {
	acc, err := NewAccumulator(2)
	require.NoError(t, err)

	triggered, _, err := acc.Accumulate(spectrum(1.0, 0.2), -100)
	require.NoError(t, err)
	require.True(t, triggered)

	triggered, avgDB, err := acc.Accumulate(spectrum(0.0, 0.6), -100)
	require.NoError(t, err)
	require.True(t, triggered)

	assert.InDeltaSlice(t, spectral.ToDB(spectrum(0.5, 0.4)), avgDB, 1e-9)
}

func TestProbeBelowFloorLeavesNoTrace(t *testing.T) {
	acc, err := NewAccumulator(3)
	require.NoError(t, err)

	loud := spectrum(0.5, 0.5, 0.5)
	_, _, err = acc.Accumulate(loud, spectral.ThresholdDB(50))
	require.NoError(t, err)
	before := acc.State()

	// the probed average is about -12 dB, under a -1 dB gate
	quiet := spectrum(1e-6, 1e-6, 1e-6)
	triggered, _, err := acc.Accumulate(quiet, spectral.ThresholdDB(99))
	require.NoError(t, err)
	assert.False(t, triggered)

	after := acc.State()
	assert.Equal(t, before.Count, after.Count)
	assert.Equal(t, before.Sum, after.Sum)
}

func TestProbeThenDiscard(t *testing.T) {
	acc, err := NewAccumulator(3)
	require.NoError(t, err)

	c, err := acc.Probe(spectrum(0.9, 0.9), -100)
	require.NoError(t, err)
	assert.True(t, c.Cleared)
	assert.Equal(t, 1, c.Count)

	// never committed
	assert.Equal(t, 0, acc.Count())
	assert.Nil(t, acc.State().Sum)
	assert.Nil(t, acc.Average())
}

func TestStaleCandidate(t *testing.T) {
	acc, err := NewAccumulator(3)
	require.NoError(t, err)

	c1, err := acc.Probe(spectrum(0.5), -100)
	require.NoError(t, err)
	c2, err := acc.Probe(spectrum(0.7), -100)
	require.NoError(t, err)

	require.NoError(t, acc.Commit(c1))
	assert.True(t, errors.Is(acc.Commit(c2), ErrStaleCandidate))

	c3, err := acc.Probe(spectrum(0.5), -100)
	require.NoError(t, err)
	acc.Reset()
	assert.True(t, errors.Is(acc.Commit(c3), ErrStaleCandidate))
	assert.Equal(t, 0, acc.Count())

	assert.True(t, errors.Is(acc.Commit(nil), ErrStaleCandidate))
}

func TestLengthMismatch(t *testing.T) {
	acc, err := NewAccumulator(3)
	require.NoError(t, err)

	_, _, err = acc.Accumulate(spectrum(0.5, 0.5), -100)
	require.NoError(t, err)

	_, err = acc.Probe(spectrum(0.5, 0.5, 0.5), -100)
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	// reset allows a new shape
	acc.Reset()
	_, err = acc.Probe(spectrum(0.5, 0.5, 0.5), -100)
	assert.NoError(t, err)
}

func TestSetMaxCount(t *testing.T) {
	acc, err := NewAccumulator(4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = acc.Accumulate(spectrum(0.5), -100)
		require.NoError(t, err)
	}

	require.NoError(t, acc.SetMaxCount(2))
	assert.True(t, acc.State().Complete())
	_, err = acc.Probe(spectrum(0.5), -100)
	assert.True(t, errors.Is(err, ErrAveragingComplete))

	assert.Error(t, acc.SetMaxCount(11))
	assert.Equal(t, 2, acc.MaxCount())

	require.NoError(t, acc.SetMaxCount(0))
	acc.Reset()
	_, err = acc.Probe(spectrum(0.5), -100)
	assert.True(t, errors.Is(err, ErrAveragingComplete))
}
