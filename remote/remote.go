// Package remote talks to speech recognition and diarization engines
// served over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"diarscribe/align"
	"diarscribe/speeches"
)

const DefaultTimeout = 60 * time.Second

type HTTP struct{ c *http.Client }

func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{c: &http.Client{Timeout: timeout}}
}

type (
	ASRResp struct {
		Chunks   []align.AsrChunk `json:"chunks"`
		Language string           `json:"language"`
	}

	Turn struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	}

	DiarizationResp struct {
		Turns []Turn `json:"turns"`
	}
)

// ASR uploads the audio to <url>/transcribe.
func (h *HTTP) ASR(ctx context.Context, url, audioPath string) (*ASRResp, error) {
	var out ASRResp
	if err := h.upload(ctx, url+"/transcribe", audioPath, &out); err != nil {
		return nil, fmt.Errorf("asr: %w", err)
	}
	return &out, nil
}

// Diarize uploads the audio to <url>/diarize.
func (h *HTTP) Diarize(ctx context.Context, url, audioPath string) (*DiarizationResp, error) {
	var out DiarizationResp
	if err := h.upload(ctx, url+"/diarize", audioPath, &out); err != nil {
		return nil, fmt.Errorf("diarization: %w", err)
	}
	return &out, nil
}

func (h *HTTP) upload(ctx context.Context, url, audioPath string, out any) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return err
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type (
	Transcriber struct {
		HTTP *HTTP
		URL  string
	}

	Diarizer struct {
		HTTP *HTTP
		URL  string
	}
)

var (
	_ speeches.Transcriber = Transcriber{}
	_ speeches.Diarizer    = Diarizer{}
)

func (t Transcriber) Transcribe(ctx context.Context, filePath string) ([]align.AsrChunk, error) {
	res, err := t.HTTP.ASR(ctx, t.URL, filePath)
	if err != nil {
		return nil, err
	}
	return res.Chunks, nil
}

func (d Diarizer) Diarize(ctx context.Context, filePath string) ([]align.DiarizationTurn, error) {
	res, err := d.HTTP.Diarize(ctx, d.URL, filePath)
	if err != nil {
		return nil, err
	}

	return ToTurns(res.Turns), nil
}

func ToTurns(raw []Turn) []align.DiarizationTurn {
	turns := make([]align.DiarizationTurn, len(raw))
	for n, t := range raw {
		turns[n] = align.DiarizationTurn{
			Interval: align.TimeInterval{Start: t.Start, End: t.End},
			Speaker:  t.Speaker,
		}
	}
	return turns
}
