// Package averaging accumulates linear magnitude spectra across accepted frames.
//
// A frame is first probed: the would-be average is computed without touching the
// accumulator, so the caller can gate on it (floor level, peak detection) before
// deciding to commit. Rejected frames leave no trace.
package averaging

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
)

// MaxAllowedCount is the largest configurable number of averages
const MaxAllowedCount = 10

var (
	ErrAveragingComplete = errors.New("averaging complete")
	ErrLengthMismatch    = errors.New("spectrum length does not match accumulated spectra")
	ErrStaleCandidate    = errors.New("candidate was probed against an older accumulator state")
	ErrInvalidMaxCount   = fmt.Errorf("max average count must be between 0 and %d", MaxAllowedCount)
)

// State is a snapshot of the accumulator. Sum is nil until the first commit.
type State struct {
	Sum      []float64 `json:"-"`
	Count    int       `json:"count"`
	MaxCount int       `json:"max_count"`
}

// Complete reports whether no further frames will be accepted
func (s State) Complete() bool {
	return s.Count >= s.MaxCount
}

// Candidate is the result of probing a frame against the accumulator
type Candidate struct {
	// Cleared is false when the averaged spectrum does not rise above the threshold
	Cleared bool

	AverageLinear []float64
	AverageDB     []float64
	Count         int

	sum        []float64
	generation uint64
}

// Accumulator keeps the running linear-magnitude sum
type Accumulator struct {
	mu         sync.Mutex
	sum        []float64
	count      int
	maxCount   int
	generation uint64
}

func NewAccumulator(maxCount int) (*Accumulator, error) {
	if maxCount < 0 || maxCount > MaxAllowedCount {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxCount, maxCount)
	}
	return &Accumulator{maxCount: maxCount}, nil
}

// State returns a copy of the accumulator state
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum []float64
	if a.sum != nil {
		sum = make([]float64, len(a.sum))
		copy(sum, a.sum)
	}
	return State{Sum: sum, Count: a.count, MaxCount: a.maxCount}
}

func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *Accumulator) MaxCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxCount
}

// SetMaxCount changes the target number of averages. Lowering it below the
// current count completes the averaging.
func (a *Accumulator) SetMaxCount(n int) error {
	if n < 0 || n > MaxAllowedCount {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxCount, n)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxCount = n
	return nil
}

// Reset discards the accumulated sum. Outstanding candidates become stale.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sum = nil
	a.count = 0
	a.generation++
}

// Average returns the current average in dB, or nil before the first commit
func (a *Accumulator) Average() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sum == nil || a.count == 0 {
		return nil
	}
	return spectral.ToDB(average(a.sum, a.count))
}

// Probe computes the average that would result from adding magnitudeLinear,
// without changing the accumulator.
func (a *Accumulator) Probe(magnitudeLinear []float64, thresholdDB float64) (*Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count >= a.maxCount {
		return nil, ErrAveragingComplete
	}
	if a.sum != nil && len(a.sum) != len(magnitudeLinear) {
		return nil, fmt.Errorf("%w: got %d bins, have %d", ErrLengthMismatch, len(magnitudeLinear), len(a.sum))
	}

	sum := make([]float64, len(magnitudeLinear))
	if a.sum == nil || a.count == 0 {
		copy(sum, magnitudeLinear)
	} else {
		floats.AddTo(sum, a.sum, magnitudeLinear)
	}
	count := a.count + 1

	avgLinear := average(sum, count)
	avgDB := spectral.ToDB(avgLinear)

	cleared := len(avgDB) > 0 && floats.Max(avgDB) > thresholdDB

	return &Candidate{
		Cleared:       cleared,
		AverageLinear: avgLinear,
		AverageDB:     avgDB,
		Count:         count,
		sum:           sum,
		generation:    a.generation,
	}, nil
}

// Commit stores a probed candidate as the new accumulator state
func (a *Accumulator) Commit(c *Candidate) error {
	if c == nil {
		return ErrStaleCandidate
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if c.generation != a.generation || c.Count != a.count+1 {
		return ErrStaleCandidate
	}
	if a.count >= a.maxCount {
		return ErrAveragingComplete
	}

	a.sum = c.sum
	a.count = c.Count
	a.generation++
	return nil
}

// Accumulate probes and commits in one step when the averaged spectrum clears
// the threshold. It returns the probed average either way.
func (a *Accumulator) Accumulate(magnitudeLinear []float64, thresholdDB float64) (bool, []float64, error) {
	c, err := a.Probe(magnitudeLinear, thresholdDB)
	if err != nil {
		return false, nil, err
	}
	if !c.Cleared {
		return false, c.AverageDB, nil
	}
	if err := a.Commit(c); err != nil {
		return false, c.AverageDB, err
	}
	return true, c.AverageDB, nil
}

func average(sum []float64, count int) []float64 {
	avg := make([]float64, len(sum))
	floats.ScaleTo(avg, 1/float64(count), sum)
	for i, v := range avg {
		avg[i] = math.Max(v, spectral.Epsilon)
	}
	return avg
}
