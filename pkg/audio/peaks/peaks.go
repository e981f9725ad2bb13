// Package peaks finds spectral peaks, refines them to sub-bin accuracy and
// limits them to a frequency band of interest.
package peaks

import (
	"math"

	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
)

// degenerateCurvature is the smallest parabola curvature treated as a real peak fit
const degenerateCurvature = 1e-12

// Peak is one interpolated spectral peak
type Peak struct {
	FrequencyHz float64 `json:"frequency_hz" yaml:"frequency_hz"`
	MagnitudeDB float64 `json:"magnitude_db" yaml:"magnitude_db"`
	Phase       float64 `json:"phase" yaml:"phase"`
}

// PeakSet is ordered by ascending frequency
type PeakSet []Peak

// Frequencies returns the peak frequencies in order
func (ps PeakSet) Frequencies() []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.FrequencyHz
	}
	return out
}

// Strongest returns the peak with the largest magnitude
func (ps PeakSet) Strongest() (Peak, bool) {
	if len(ps) == 0 {
		return Peak{}, false
	}
	best := ps[0]
	for _, p := range ps[1:] {
		if p.MagnitudeDB > best.MagnitudeDB {
			best = p
		}
	}
	return best, true
}

// Detect returns the interior bins that are strict local maxima above thresholdDB,
// in ascending order. Ties with a neighbour are not peaks.
func Detect(magnitudeDB []float64, thresholdDB float64) []int {
	var locs []int
	for i := 1; i < len(magnitudeDB)-1; i++ {
		c := magnitudeDB[i]
		if c > thresholdDB && c > magnitudeDB[i-1] && c > magnitudeDB[i+1] {
			locs = append(locs, i)
		}
	}
	return locs
}

// Interpolate fits a parabola through each peak bin and its neighbours and returns
// the refined bin location and magnitude. Edge bins and flat or linear triples keep
// their integer bin and magnitude.
func Interpolate(magnitude []float64, locs []int) (iploc, ipmag []float64) {
	iploc = make([]float64, len(locs))
	ipmag = make([]float64, len(locs))

	for i, b := range locs {
		iploc[i] = float64(b)
		if b < 0 || b >= len(magnitude) {
			ipmag[i] = math.Inf(-1)
			continue
		}
		ipmag[i] = magnitude[b]
		if b == 0 || b == len(magnitude)-1 {
			continue
		}

		l, c, r := magnitude[b-1], magnitude[b], magnitude[b+1]
		den := l - 2*c + r
		if math.Abs(den) < degenerateCurvature {
			continue
		}

		iploc[i] = float64(b) + 0.5*(l-r)/den
		ipmag[i] = c - 0.25*(l-r)*(iploc[i]-float64(b))
	}

	return iploc, ipmag
}

// InterpolatePhase linearly interpolates the phase spectrum at fractional bin locations
func InterpolatePhase(phase []float64, iploc []float64) []float64 {
	out := make([]float64, len(iploc))
	if len(phase) == 0 {
		return out
	}

	last := len(phase) - 1
	for i, loc := range iploc {
		switch {
		case loc <= 0:
			out[i] = phase[0]
		case loc >= float64(last):
			out[i] = phase[last]
		default:
			lo := int(math.Floor(loc))
			frac := loc - float64(lo)
			out[i] = phase[lo] + frac*(phase[lo+1]-phase[lo])
		}
	}
	return out
}

// Detector converts detected bins into peaks in Hz for one analysis configuration
type Detector struct {
	sampleRate int
	fftSize    int
}

func NewDetector(sampleRate, fftSize int) *Detector {
	return &Detector{
		sampleRate: sampleRate,
		fftSize:    fftSize,
	}
}

// Find detects and interpolates the peaks of a dB spectrum
func (d *Detector) Find(magnitudeDB []float64, thresholdDB float64) PeakSet {
	return d.find(magnitudeDB, nil, thresholdDB)
}

// FindFrame is Find on an analyzed frame, with phase at each peak
func (d *Detector) FindFrame(frame *spectral.SpectrumFrame, thresholdDB float64) PeakSet {
	if frame == nil {
		return PeakSet{}
	}
	return d.find(frame.MagnitudeDB, frame.Phase, thresholdDB)
}

func (d *Detector) find(magnitudeDB, phase []float64, thresholdDB float64) PeakSet {
	locs := Detect(magnitudeDB, thresholdDB)
	if len(locs) == 0 {
		return PeakSet{}
	}

	iploc, ipmag := Interpolate(magnitudeDB, locs)
	var ipphase []float64
	if len(phase) > 0 {
		ipphase = InterpolatePhase(phase, iploc)
	}

	nyquist := float64(d.sampleRate) / 2
	set := make(PeakSet, len(locs))
	for i := range locs {
		freq := spectral.BinFrequency(iploc[i], d.sampleRate, d.fftSize)
		set[i] = Peak{
			FrequencyHz: math.Max(0, math.Min(nyquist, freq)),
			MagnitudeDB: ipmag[i],
		}
		if ipphase != nil {
			set[i].Phase = ipphase[i]
		}
	}
	return set
}
