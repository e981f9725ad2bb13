// Package events carries analysis results from the tracker to its consumers
package events

import (
	"time"

	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
)

// Kind identifies an event type on the wire
type Kind string

const (
	KindAmplitude Kind = "amplitude"
	KindPeaks     Kind = "peaks"
	KindAverages  Kind = "averages"
	KindTiming    Kind = "timing"
	KindNewSample Kind = "new_sample"
	KindHold      Kind = "hold"
	KindDisplay   Kind = "display"
)

// Event is implemented by every notification the tracker emits
type Event interface {
	Kind() Kind
}

// AmplitudeEvent is the 0-100 level readout of the latest frame
type AmplitudeEvent struct {
	Amplitude int `json:"amplitude"`
}

// PeaksEvent carries the in-window peaks on display, possibly empty
type PeaksEvent struct {
	Peaks peaks.PeakSet `json:"peaks"`
}

type AveragesEvent struct {
	Count    int `json:"count"`
	MaxCount int `json:"max_count"`
}

// TimingEvent reports loop performance, all values in seconds except FPS
type TimingEvent struct {
	FPS            float64 `json:"fps"`
	SampleInterval float64 `json:"sample_interval_s"`
	ProcessingTime float64 `json:"processing_time_s"`
}

// NewSampleEvent marks a freshly committed result, as opposed to a redisplay
type NewSampleEvent struct {
	New bool `json:"new"`
}

// HoldEvent reports a change of the hold flag, including the automatic hold
// when averaging completes
type HoldEvent struct {
	Hold bool `json:"hold"`
}

// DisplayEvent is the full retained picture
type DisplayEvent struct {
	State       string        `json:"state"`
	MagnitudeDB []float64     `json:"magnitude_db,omitempty"`
	Peaks       peaks.PeakSet `json:"peaks"`
	ThresholdDB float64       `json:"threshold_db"`
	MinIndex    int           `json:"min_index"`
	MaxIndex    int           `json:"max_index"`
}

func (AmplitudeEvent) Kind() Kind { return KindAmplitude }
func (PeaksEvent) Kind() Kind     { return KindPeaks }
func (AveragesEvent) Kind() Kind  { return KindAverages }
func (TimingEvent) Kind() Kind    { return KindTiming }
func (NewSampleEvent) Kind() Kind { return KindNewSample }
func (HoldEvent) Kind() Kind      { return KindHold }
func (DisplayEvent) Kind() Kind   { return KindDisplay }

// Message is the JSON envelope of an event
type Message struct {
	Type Kind      `json:"type"`
	Time time.Time `json:"time"`
	Data Event     `json:"data"`
}

// Envelope wraps an event for serialization
func Envelope(e Event) Message {
	return Message{
		Type: e.Kind(),
		Time: time.Now().UTC(),
		Data: e,
	}
}
