package speeches

import (
	"errors"

	"diarscribe/align"
)

var ErrNotFound = errors.New("not found")

type (
	Speech struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		Blake3Hash    string `json:"blake3_hash"`
		IsTranscribed bool   `json:"is_transcribed"`
	}

	Transcript struct {
		Speech   Speech          `json:"speech"`
		Segments []align.Segment `json:"segments"`
	}
)
