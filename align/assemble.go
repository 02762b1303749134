package align

// Assembler runs the whole alignment for one recording.
type Assembler struct {
	Merger Merger
}

// Assemble runs the default assembler.
func Assemble(chunks []AsrChunk, turns []DiarizationTurn) TranscriptionResponse {
	return Assembler{Merger: DefaultMerger}.Assemble(chunks, turns)
}

// Assemble indexes turns, attributes every chunk, merges the result and
// rounds timestamps to two decimals.
func (a Assembler) Assemble(chunks []AsrChunk, turns []DiarizationTurn) TranscriptionResponse {
	utts := a.Merger.Merge(ResolveAll(chunks, BuildIndex(turns)))

	res := TranscriptionResponse{Segments: make([]Segment, len(utts))}
	for n, u := range utts {
		res.Segments[n] = Segment{
			Timestamp: Timestamp{
				Start: Round(u.Interval.Start, 2),
				End:   Round(u.Interval.End, 2),
			},
			Speaker: u.Speaker,
			Text:    u.Text,
		}
	}
	return res
}
