package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Displayed levels are dB relative to digital full scale, limited to [FloorDB, CeilingDB].
// Threshold percentages and the amplitude readout are offsets above FloorDB.
const (
	FloorDB   = -100.0
	CeilingDB = 0.0
)

// Epsilon is the machine epsilon of float64, used to floor linear magnitudes before log10
var Epsilon = math.Nextafter(1, 2) - 1

// ThresholdDB maps a threshold percentage in [0, 100] to a dB gate
func ThresholdDB(percent int) float64 {
	return float64(percent) + FloorDB
}

// Headroom returns max(magnitudeDB) above FloorDB, clamped to [0, CeilingDB-FloorDB]
func Headroom(magnitudeDB []float64) float64 {
	if len(magnitudeDB) == 0 {
		return 0
	}
	peak := floats.Max(magnitudeDB)
	peak = math.Max(FloorDB, math.Min(CeilingDB, peak))
	return peak - FloorDB
}

// Amplitude is the integer amplitude readout (0-100) of a dB spectrum
func Amplitude(magnitudeDB []float64) int {
	return int(Headroom(magnitudeDB))
}

// ToDB converts linear magnitudes to dB, flooring at Epsilon
func ToDB(linear []float64) []float64 {
	db := make([]float64, len(linear))
	for i, v := range linear {
		if v < Epsilon {
			v = Epsilon
		}
		db[i] = 20 * math.Log10(v)
	}
	return db
}

// BinFrequency returns the centre frequency of an FFT bin
func BinFrequency(bin float64, sampleRate, fftSize int) float64 {
	return bin * float64(sampleRate) / float64(fftSize)
}

// FrequencyBin returns the bin index at or below the given frequency
func FrequencyBin(freq float64, sampleRate, fftSize int) int {
	return int(math.Floor(freq * float64(fftSize) / float64(sampleRate)))
}
