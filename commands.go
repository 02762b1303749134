package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"diarscribe/align"
	"diarscribe/pyannote"
	"diarscribe/remote"
	"diarscribe/render"
)

var (
	outputFormat string
	speechName   string
	maxGap       float64
	maxWords     int
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Transcribe and diarize one recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

var alignCmd = &cobra.Command{
	Use:   "align <asr.json> <diarization.json|.rttm>",
	Short: "Align stored ASR and diarization output",
	Long: `Runs only the alignment and merge step over engine output saved to disk.
The ASR file holds {"chunks": [...]} or a bare chunk array. The diarization
file is RTTM when it ends in .rttm, JSON turns otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runAlign,
}

func init() {
	for _, c := range []*cobra.Command{transcribeCmd, alignCmd} {
		c.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format: json or markdown")
	}
	transcribeCmd.Flags().StringVar(&speechName, "name", "", "name stored with the recording (defaults to the file name)")
	alignCmd.Flags().Float64Var(&maxGap, "max-gap", -1, "longest silence in seconds bridged by a merge (defaults to config)")
	alignCmd.Flags().IntVar(&maxWords, "max-words", 0, "word count that stops a block from growing (defaults to config)")

	rootCmd.AddCommand(transcribeCmd, alignCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	audioPath := args[0]
	name := speechName
	if name == "" {
		name = filepath.Base(audioPath)
	}

	svc, closeDB, err := newService(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	t, err := svc.Transcribe(ctx, name, audioPath)
	if err != nil {
		return err
	}
	return writeTranscript(cmd.OutOrStdout(), render.Metadata{Title: name, Source: audioPath}, t.Segments)
}

func runAlign(cmd *cobra.Command, args []string) error {
	chunks, err := readChunks(args[0])
	if err != nil {
		return err
	}
	turns, err := readTurns(args[1])
	if err != nil {
		return err
	}

	a := assembler(cfg)
	if maxGap >= 0 {
		a.Merger.MaxGap = maxGap
	}
	if maxWords > 0 {
		a.Merger.MaxWords = maxWords
	}

	res := a.Assemble(chunks, turns)
	return writeTranscript(cmd.OutOrStdout(), render.Metadata{Source: args[0]}, res.Segments)
}

func writeTranscript(w io.Writer, meta render.Metadata, segments []align.Segment) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(align.TranscriptionResponse{Segments: segments})
	case "markdown", "md":
		meta.Generated = time.Now().Format(time.RFC3339)
		_, err := io.WriteString(w, render.Markdown(meta, segments))
		return err
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func readChunks(path string) ([]align.AsrChunk, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asr output: %w", err)
	}

	if isJSONArray(b) {
		var chunks []align.AsrChunk
		if err := json.Unmarshal(b, &chunks); err != nil {
			return nil, fmt.Errorf("decoding asr output: %w", err)
		}
		return chunks, nil
	}

	var res remote.ASRResp
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decoding asr output: %w", err)
	}
	return res.Chunks, nil
}

func readTurns(path string) ([]align.DiarizationTurn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading diarization output: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".rttm") {
		return pyannote.ParseRTTM(f)
	}

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading diarization output: %w", err)
	}

	var raw []remote.Turn
	if isJSONArray(b) {
		err = json.Unmarshal(b, &raw)
	} else {
		var res remote.DiarizationResp
		err = json.Unmarshal(b, &res)
		raw = res.Turns
	}
	if err != nil {
		return nil, fmt.Errorf("decoding diarization output: %w", err)
	}
	return remote.ToTurns(raw), nil
}

func isJSONArray(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("["))
}
