// Package whisperx runs the whisperx command line tool as the speech
// recognition engine.
package whisperx

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"diarscribe/align"
	"diarscribe/speeches"
)

const (
	GranularitySegment = "segment"
	GranularityWord    = "word"
)

type (
	transcribeResult struct {
		Segments []segment `json:"segments"`
	}

	segment struct {
		Text  string           `json:"text"`
		Start *decimal.Decimal `json:"start"`
		End   *decimal.Decimal `json:"end"`
		Words []word           `json:"words"`
	}

	word struct {
		Text  string           `json:"word"`
		Start *decimal.Decimal `json:"start"`
		End   *decimal.Decimal `json:"end"`
	}
)

type WhisperxTranscriber struct {
	// Command defaults to "whisperx".
	Command     string
	Model       string
	Language    string
	Device      string
	Granularity string
}

var _ speeches.Transcriber = WhisperxTranscriber{}

func (w WhisperxTranscriber) Transcribe(ctx context.Context, filePath string) ([]align.AsrChunk, error) {
	outDir, err := os.MkdirTemp("", "whisperx-")
	if err != nil {
		return nil, fmt.Errorf("creating whisperx output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, w.command(), w.args(filePath, outDir)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("whisperx stderr: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("whisperx stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting whisperx: %w", err)
	}

	logger := log.WithField("path", filePath)
	done := make(chan struct{}, 2)
	go pump(stderr, logger, done)
	go pump(stdout, logger, done)
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	resultFile, err := os.Open(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("opening whisperx transcribe result: %w", err)
	}
	defer resultFile.Close()

	return decodeResult(resultFile, w.Granularity)
}

func (w WhisperxTranscriber) command() string {
	if w.Command == "" {
		return "whisperx"
	}
	return w.Command
}

func (w WhisperxTranscriber) args(filePath, outDir string) []string {
	args := []string{filePath, "--output_format", "json", "--output_dir", outDir}
	if w.Model != "" {
		args = append(args, "--model", w.Model)
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	if w.Device != "" {
		args = append(args, "--device", w.Device)
	}
	return args
}

func pump(r io.Reader, logger log.FieldLogger, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		logger.Debug(scanner.Text())
	}
}

func decodeResult(r io.Reader, granularity string) ([]align.AsrChunk, error) {
	var tr transcribeResult
	if err := json.NewDecoder(r).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding whisperx json result: %w", err)
	}

	switch granularity {
	case "", GranularitySegment:
		res := make([]align.AsrChunk, len(tr.Segments))
		for n, s := range tr.Segments {
			res[n] = chunk(s.Start, s.End, s.Text)
		}
		return res, nil
	case GranularityWord:
		var res []align.AsrChunk
		for _, s := range tr.Segments {
			for _, w := range s.Words {
				res = append(res, chunk(w.Start, w.End, w.Text))
			}
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unknown whisperx granularity %q", granularity)
	}
}

func chunk(start, end *decimal.Decimal, text string) align.AsrChunk {
	return align.AsrChunk{
		Timestamp: [2]*float64{seconds(start), seconds(end)},
		Text:      text,
	}
}

func seconds(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}
