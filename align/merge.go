package align

import "strings"

const (
	// MaxGap is the longest silence in seconds bridged by a merge.
	MaxGap = 0.2
	// MaxWords stops a block from growing once it holds this many words.
	MaxWords = 35
)

// Merger collapses consecutive same-speaker utterances.
type Merger struct {
	MaxGap   float64
	MaxWords int
}

// DefaultMerger uses MaxGap and MaxWords.
var DefaultMerger = Merger{MaxGap: MaxGap, MaxWords: MaxWords}

// Merge runs DefaultMerger.
func Merge(utts []Utterance) []Utterance {
	return DefaultMerger.Merge(utts)
}

// Merge joins next into the current block when both share a speaker, the
// gap between them is at most m.MaxGap and the block is still under
// m.MaxWords words. The input is not modified.
func (m Merger) Merge(utts []Utterance) []Utterance {
	if len(utts) == 0 {
		return []Utterance{}
	}

	var res []Utterance
	cur := utts[0]
	for _, next := range utts[1:] {
		if next.Speaker == cur.Speaker &&
			next.Interval.Start-cur.Interval.End <= m.MaxGap &&
			len(strings.Fields(cur.Text)) < m.MaxWords {
			cur.Interval.End = next.Interval.End
			cur.Text += " " + next.Text
			continue
		}
		res = append(res, cur)
		cur = next
	}
	return append(res, cur)
}
