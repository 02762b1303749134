// Package align fuses ASR chunks and diarization turns into a
// speaker-attributed transcript.
package align

import (
	"math"

	"github.com/shopspring/decimal"
)

// Unknown is the speaker assigned to a chunk no diarization turn covers.
const Unknown = "UNKNOWN"

type (
	TimeInterval struct {
		Start float64
		End   float64
	}

	// AsrChunk is one timestamped piece of ASR output. Either bound of the
	// timestamp may be missing.
	AsrChunk struct {
		Timestamp [2]*float64 `json:"timestamp"`
		Text      string      `json:"text"`
	}

	DiarizationTurn struct {
		Interval TimeInterval
		Speaker  string
	}

	Utterance struct {
		Speaker  string
		Interval TimeInterval
		Text     string
	}

	Timestamp struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}

	Segment struct {
		Timestamp Timestamp `json:"timestamp"`
		Speaker   string    `json:"speaker"`
		Text      string    `json:"text"`
	}

	TranscriptionResponse struct {
		Segments []Segment `json:"segments"`
	}
)

// Chunk builds a fully timestamped chunk.
func Chunk(start, end float64, text string) AsrChunk {
	return AsrChunk{Timestamp: [2]*float64{&start, &end}, Text: text}
}

// Interval returns the chunk's interval, or false when a bound is missing.
func (c AsrChunk) Interval() (TimeInterval, bool) {
	if c.Timestamp[0] == nil || c.Timestamp[1] == nil {
		return TimeInterval{}, false
	}
	return TimeInterval{Start: *c.Timestamp[0], End: *c.Timestamp[1]}, true
}

// Round rounds half away from zero on the shortest decimal form of f, so
// Round(1.005, 2) is 1.01.
func Round(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, _ := decimal.NewFromFloat(f).Round(places).Float64()
	return r
}
