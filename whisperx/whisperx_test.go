package whisperx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarscribe/align"
)

const result = `{
	"segments": [
		{
			"text": " Bonjour, comment ça va ?",
			"start": 0.031,
			"end": 1.52,
			"words": [
				{"word": "Bonjour,", "start": 0.031, "end": 0.45, "score": 0.9},
				{"word": "comment", "start": 0.5, "end": 0.8},
				{"word": "ça"},
				{"word": "va", "start": 1.1, "end": null}
			]
		},
		{"text": " Très bien.", "start": 2.0, "end": 2.75, "words": []}
	],
	"language": "fr"
}`

func ptr(f float64) *float64 { return &f }

func TestDecodeResult_Segments(t *testing.T) {
	got, err := decodeResult(strings.NewReader(result), "")
	require.NoError(t, err)
	assert.Equal(t, []align.AsrChunk{
		{Timestamp: [2]*float64{ptr(0.031), ptr(1.52)}, Text: " Bonjour, comment ça va ?"},
		{Timestamp: [2]*float64{ptr(2.0), ptr(2.75)}, Text: " Très bien."},
	}, got)
}

func TestDecodeResult_Words(t *testing.T) {
	got, err := decodeResult(strings.NewReader(result), GranularityWord)
	require.NoError(t, err)
	assert.Equal(t, []align.AsrChunk{
		{Timestamp: [2]*float64{ptr(0.031), ptr(0.45)}, Text: "Bonjour,"},
		{Timestamp: [2]*float64{ptr(0.5), ptr(0.8)}, Text: "comment"},
		{Timestamp: [2]*float64{nil, nil}, Text: "ça"},
		{Timestamp: [2]*float64{ptr(1.1), nil}, Text: "va"},
	}, got)

	utts := align.ResolveAll(got, align.SpeakerIndex{})
	assert.Len(t, utts, 2)
}

func TestDecodeResult_Errors(t *testing.T) {
	_, err := decodeResult(strings.NewReader("{"), "")
	assert.Error(t, err)

	_, err = decodeResult(strings.NewReader(result), "sentence")
	assert.ErrorContains(t, err, "granularity")
}

func TestArgs(t *testing.T) {
	w := WhisperxTranscriber{Model: "large-v3", Language: "fr"}
	assert.Equal(t, "whisperx", w.command())
	assert.Equal(t, []string{
		"a.wav", "--output_format", "json", "--output_dir", "/tmp/out",
		"--model", "large-v3", "--language", "fr",
	}, w.args("a.wav", "/tmp/out"))
}
