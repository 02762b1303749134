package align

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble_Conversation(t *testing.T) {
	chunks := []AsrChunk{
		Chunk(0, 0.5, "bonjour"),
		Chunk(0.5, 1.0, "comment"),
		Chunk(3.0, 3.5, "ça va"),
	}
	turns := []DiarizationTurn{
		turn(0, 1, "SPEAKER_00"),
		turn(3, 3.5, "SPEAKER_01"),
	}

	got := Assemble(chunks, turns)
	assert.Equal(t, []Segment{
		{Timestamp: Timestamp{Start: 0, End: 1}, Speaker: "SPEAKER_00", Text: "bonjour comment"},
		{Timestamp: Timestamp{Start: 3, End: 3.5}, Speaker: "SPEAKER_01", Text: "ça va"},
	}, got.Segments)
}

func TestAssemble_EmptyInputs(t *testing.T) {
	got := Assemble(nil, nil)
	assert.NotNil(t, got.Segments)
	assert.Empty(t, got.Segments)

	got = Assemble([]AsrChunk{Chunk(0, 1, "seul")}, nil)
	assert.Equal(t, []Segment{
		{Timestamp: Timestamp{Start: 0, End: 1}, Speaker: Unknown, Text: "seul"},
	}, got.Segments)
}

func TestAssemble_RoundsTimestamps(t *testing.T) {
	got := Assemble([]AsrChunk{Chunk(1.005, 2.004, "x")}, nil)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, Timestamp{Start: 1.01, End: 2.0}, got.Segments[0].Timestamp)
}

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.005, 1.01},
		{2.004, 2.0},
		{2.675, 2.68},
		{0.125, 0.13},
		{-1.005, -1.01},
		{3.14159, 3.14},
		{7, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, 2), "Round(%v, 2)", tt.in)
	}
}

func TestAssemble_CustomMerger(t *testing.T) {
	a := Assembler{Merger: Merger{MaxGap: 5, MaxWords: MaxWords}}
	got := a.Assemble(
		[]AsrChunk{Chunk(0, 1, "un"), Chunk(3, 4, "deux")},
		[]DiarizationTurn{turn(0, 5, "A")},
	)
	assert.Equal(t, []Segment{
		{Timestamp: Timestamp{Start: 0, End: 4}, Speaker: "A", Text: "un deux"},
	}, got.Segments)
}

func TestTranscriptionResponse_JSON(t *testing.T) {
	var chunks []AsrChunk
	err := json.Unmarshal([]byte(`[
		{"timestamp": [0.0, 0.5], "text": " bonjour"},
		{"timestamp": [0.5, null], "text": "coupé"},
		{"text": "sans temps"},
		{"timestamp": [0.5, 1.0], "text": "comment "}
	]`), &chunks)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	_, ok := chunks[1].Interval()
	assert.False(t, ok)
	_, ok = chunks[2].Interval()
	assert.False(t, ok)

	res := Assemble(chunks, []DiarizationTurn{turn(0, 1, "SPEAKER_00")})
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"segments": [
		{"timestamp": {"start": 0, "end": 1}, "speaker": "SPEAKER_00", "text": "bonjour comment"}
	]}`, string(b))
}
