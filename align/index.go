package align

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// BucketSize is the resolution of the speaker index in seconds.
const BucketSize = 0.1

type (
	// Bucket is an instant rounded to one decimal, in tenths of a second.
	Bucket int64

	SpeakerIndex map[Bucket]string
)

// BucketOf rounds the exact binary value of t to one decimal, ties to
// even: 0.35 is stored as 0.3499... and lands in bucket 3, 0.25 in bucket 2.
func BucketOf(t float64) Bucket {
	d, err := decimal.NewFromString(strconv.FormatFloat(t, 'f', 1, 64))
	if err != nil {
		return 0
	}
	return Bucket(d.Shift(1).IntPart())
}

// Seconds returns the bucket's instant.
func (b Bucket) Seconds() float64 {
	return float64(b) / 10
}

// buckets calls fn for start, start+0.1, ... strictly below end.
func buckets(iv TimeInterval, fn func(Bucket)) {
	n := math.Ceil((iv.End - iv.Start) / BucketSize)
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return
	}
	for i := 0; i < int(n); i++ {
		fn(BucketOf(iv.Start + float64(i)*BucketSize))
	}
}

// BuildIndex maps every bucket covered by a turn to the turn's speaker.
// Turns are applied in order, so on overlap the later turn wins.
func BuildIndex(turns []DiarizationTurn) SpeakerIndex {
	idx := SpeakerIndex{}
	for _, t := range turns {
		speaker := t.Speaker
		buckets(t.Interval, func(b Bucket) {
			idx[b] = speaker
		})
	}
	return idx
}
