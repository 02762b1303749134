// Package pyannote runs an external speaker diarization command and reads
// its RTTM output.
package pyannote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"diarscribe/align"
	"diarscribe/speeches"
)

// Diarizer invokes Command with the audio path. The command is expected to
// print RTTM on stdout.
type Diarizer struct {
	Command string
	Model   string
	HFToken string
}

var _ speeches.Diarizer = Diarizer{}

func (d Diarizer) Diarize(ctx context.Context, filePath string) ([]align.DiarizationTurn, error) {
	if d.Command == "" {
		return nil, errors.New("no diarization command configured")
	}

	args := []string{filePath}
	if d.Model != "" {
		args = append(args, "--model", d.Model)
	}
	cmd := exec.CommandContext(ctx, d.Command, args...)
	cmd.Env = os.Environ()
	if d.HFToken != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+d.HFToken)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", d.Command, err, strings.TrimSpace(stderr.String()))
	}

	turns, err := ParseRTTM(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"path": filePath, "turns": len(turns)}).Debug("diarization done")
	return turns, nil
}

// ParseRTTM reads SPEAKER records in file order. Blank lines, comments and
// other record types are skipped.
func ParseRTTM(r io.Reader) ([]align.DiarizationTurn, error) {
	var res []align.DiarizationTurn

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], ";;") || fields[0] != "SPEAKER" {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("rttm line %d: expected at least 8 fields, got %d", line, len(fields))
		}

		start, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: onset: %w", line, err)
		}
		dur, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("rttm line %d: duration: %w", line, err)
		}

		res = append(res, align.DiarizationTurn{
			Interval: align.TimeInterval{Start: start, End: start + dur},
			Speaker:  fields[7],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rttm: %w", err)
	}
	return res, nil
}
