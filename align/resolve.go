package align

import "strings"

// Resolve attributes a chunk to the speaker holding most of its buckets.
// Ties go to the speaker voted for first. It returns false for chunks
// without a complete timestamp.
func Resolve(c AsrChunk, idx SpeakerIndex) (Utterance, bool) {
	iv, ok := c.Interval()
	if !ok {
		return Utterance{}, false
	}

	var order []string
	votes := map[string]int{}
	buckets(iv, func(b Bucket) {
		speaker, ok := idx[b]
		if !ok {
			return
		}
		if votes[speaker] == 0 {
			order = append(order, speaker)
		}
		votes[speaker]++
	})

	speaker := Unknown
	best := 0
	for _, s := range order {
		if votes[s] > best {
			speaker, best = s, votes[s]
		}
	}

	return Utterance{
		Speaker:  speaker,
		Interval: iv,
		Text:     strings.TrimSpace(c.Text),
	}, true
}

// ResolveAll resolves chunks in order, dropping the ones Resolve rejects.
func ResolveAll(chunks []AsrChunk, idx SpeakerIndex) []Utterance {
	res := make([]Utterance, 0, len(chunks))
	for _, c := range chunks {
		if u, ok := Resolve(c, idx); ok {
			res = append(res, u)
		}
	}
	return res
}
