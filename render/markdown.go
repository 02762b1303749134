// Package render formats aligned transcripts for people.
package render

import (
	"fmt"
	"strings"
	"time"

	"diarscribe/align"
)

type Metadata struct {
	Title     string
	Source    string
	Generated string
}

func Markdown(meta Metadata, segments []align.Segment) string {
	var b strings.Builder
	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Transcript\n\n")
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if meta.Generated != "" {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.Generated)
	}
	fmt.Fprintf(&b, "- Speakers: %s\n", strings.Join(speakers(segments), ", "))
	b.WriteString("\n---\n\n")

	for _, s := range segments {
		fmt.Fprintf(&b, "[%s-%s] **%s**: %s\n\n",
			clock(s.Timestamp.Start), clock(s.Timestamp.End), s.Speaker, s.Text)
	}
	return b.String()
}

// speakers lists distinct speakers by first appearance.
func speakers(segments []align.Segment) []string {
	seen := map[string]bool{}
	var res []string
	for _, s := range segments {
		if !seen[s.Speaker] {
			seen[s.Speaker] = true
			res = append(res, s.Speaker)
		}
	}
	return res
}

func clock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	d := time.Duration(sec * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
