package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"diarscribe/align"
)

func TestMarkdown(t *testing.T) {
	got := Markdown(Metadata{Title: "Réunion", Source: "a.wav"}, []align.Segment{
		{Timestamp: align.Timestamp{Start: 0, End: 1}, Speaker: "SPEAKER_00", Text: "bonjour comment"},
		{Timestamp: align.Timestamp{Start: 3, End: 3.5}, Speaker: "SPEAKER_01", Text: "ça va"},
		{Timestamp: align.Timestamp{Start: 3725.4, End: 3730}, Speaker: "SPEAKER_00", Text: "au revoir"},
	})

	assert.Equal(t, "# Réunion\n\n"+
		"- Source: `a.wav`\n"+
		"- Speakers: SPEAKER_00, SPEAKER_01\n"+
		"\n---\n\n"+
		"[00:00-00:01] **SPEAKER_00**: bonjour comment\n\n"+
		"[00:03-00:03] **SPEAKER_01**: ça va\n\n"+
		"[01:02:05-01:02:10] **SPEAKER_00**: au revoir\n\n", got)
}

func TestMarkdown_Empty(t *testing.T) {
	got := Markdown(Metadata{}, nil)
	assert.Equal(t, "# Transcript\n\n- Speakers: \n\n---\n\n", got)
}
