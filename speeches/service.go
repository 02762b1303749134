package speeches

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"diarscribe/align"
	"diarscribe/b3"
)

type (
	repo interface {
		CreateSpeech(ctx context.Context, name string, blake3Hash string) (Speech, error)
		GetSpeech(ctx context.Context, id int64) (Speech, error)
		GetSpeechByHash(ctx context.Context, blake3Hash string) (Speech, error)
		ListSpeeches(ctx context.Context) ([]Speech, error)
		InsertSegments(ctx context.Context, speechID int64, segments []align.Segment) error
		ListSegments(ctx context.Context, speechID int64) ([]align.Segment, error)
	}

	svcImpl struct {
		r  repo
		e  Engines
		a  align.Assembler
		wg *sync.WaitGroup
	}
)

func NewService(r repo, e Engines, a align.Assembler) svcImpl {
	var wg sync.WaitGroup
	return svcImpl{r: r, e: e, a: a, wg: &wg}
}

func (s svcImpl) Wait() {
	s.wg.Wait()
}

// Transcribe runs the whole pipeline for the recording at filePath. A
// recording already transcribed under any name is served from the store.
func (s svcImpl) Transcribe(ctx context.Context, name string, filePath string) (Transcript, error) {
	speech, err := s.register(ctx, name, filePath)
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	if speech.IsTranscribed {
		segments, err := s.r.ListSegments(ctx, speech.ID)
		if err != nil {
			return Transcript{}, fmt.Errorf("transcribe: %w", err)
		}
		log.WithField("speech_id", speech.ID).Info("serving stored transcript")
		return Transcript{Speech: speech, Segments: segments}, nil
	}

	t, err := s.transcribe(ctx, speech, filePath)
	if err != nil {
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}
	return t, nil
}

// StartTranscribe registers the recording and transcribes it in the
// background, detached from ctx cancellation. release is called once the
// file at filePath is no longer read.
func (s svcImpl) StartTranscribe(ctx context.Context, name string, filePath string, release func()) (Speech, error) {
	speech, err := s.register(ctx, name, filePath)
	if err != nil {
		release()
		return Speech{}, fmt.Errorf("start transcribe: %w", err)
	}
	if speech.IsTranscribed {
		release()
		return speech, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()

		_, err := s.transcribe(context.WithoutCancel(ctx), speech, filePath)
		if err != nil {
			log.WithError(err).WithField("speech_id", speech.ID).Error("background transcription failed")
		}
	}()

	return speech, nil
}

func (s svcImpl) GetTranscript(ctx context.Context, id int64) (Transcript, error) {
	speech, err := s.r.GetSpeech(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("get transcript: %w", err)
	}

	segments, err := s.r.ListSegments(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("get transcript: %w", err)
	}
	return Transcript{Speech: speech, Segments: segments}, nil
}

func (s svcImpl) ListSpeeches(ctx context.Context) ([]Speech, error) {
	res, err := s.r.ListSpeeches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list speeches: %w", err)
	}
	return res, nil
}

func (s svcImpl) register(ctx context.Context, name string, filePath string) (Speech, error) {
	blake3Hash, err := b3.SumFile(filePath)
	if err != nil {
		return Speech{}, err
	}

	speech, err := s.r.GetSpeechByHash(ctx, blake3Hash)
	if err == nil {
		return speech, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Speech{}, err
	}

	return s.r.CreateSpeech(ctx, name, blake3Hash)
}

func (s svcImpl) transcribe(ctx context.Context, speech Speech, filePath string) (Transcript, error) {
	logger := log.WithFields(log.Fields{"speech_id": speech.ID, "path": filePath})
	logger.Info("running speech engines")

	chunks, turns, err := s.e.Run(ctx, filePath)
	if err != nil {
		return Transcript{}, err
	}

	res := s.a.Assemble(chunks, turns)
	logger.WithFields(log.Fields{
		"chunks":   len(chunks),
		"turns":    len(turns),
		"segments": len(res.Segments),
	}).Info("aligned transcript")

	if err := s.r.InsertSegments(ctx, speech.ID, res.Segments); err != nil {
		return Transcript{}, err
	}

	speech.IsTranscribed = true
	return Transcript{Speech: speech, Segments: res.Segments}, nil
}
