package speeches

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"diarscribe/align"
)

type (
	Transcriber interface {
		Transcribe(ctx context.Context, filePath string) ([]align.AsrChunk, error)
	}

	Diarizer interface {
		Diarize(ctx context.Context, filePath string) ([]align.DiarizationTurn, error)
	}

	// Engines holds the speech models. It is built once at startup and
	// shared by every request.
	Engines struct {
		Transcriber Transcriber
		Diarizer    Diarizer
	}
)

// Run transcribes and diarizes filePath concurrently. When one engine fails
// the other is cancelled.
func (e Engines) Run(ctx context.Context, filePath string) ([]align.AsrChunk, []align.DiarizationTurn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg              sync.WaitGroup
		chunks          []align.AsrChunk
		turns           []align.DiarizationTurn
		asrErr, diarErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		chunks, asrErr = e.Transcriber.Transcribe(ctx, filePath)
		if asrErr != nil {
			asrErr = fmt.Errorf("transcribing: %w", asrErr)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		turns, diarErr = e.Diarizer.Diarize(ctx, filePath)
		if diarErr != nil {
			diarErr = fmt.Errorf("diarizing: %w", diarErr)
			cancel()
		}
	}()
	wg.Wait()

	if err := errors.Join(asrErr, diarErr); err != nil {
		return nil, nil, err
	}
	return chunks, turns, nil
}
