// Package srt renders transcription cues as SubRip subtitle documents.
package srt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNegativeOffset is returned when a millisecond offset is below zero.
var ErrNegativeOffset = errors.New("negative millisecond offset")

// Cue is one timestamped subtitle line.
type Cue struct {
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Text    string `json:"text"`
}

// FormatTimestamp renders a millisecond offset as HH:MM:SS,mmm.
// Hours grow past two digits instead of wrapping.
func FormatTimestamp(ms int64) (string, error) {
	if ms < 0 {
		return "", fmt.Errorf("format timestamp %d: %w", ms, ErrNegativeOffset)
	}

	totalSeconds := ms / 1000
	millis := ms % 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis), nil
}

// BuildDocument concatenates cues into 1-indexed SubRip blocks in input
// order. Cue ordering and start/end sanity are the caller's concern.
func BuildDocument(cues []Cue) (string, error) {
	var b strings.Builder
	for i, cue := range cues {
		start, err := FormatTimestamp(cue.StartMs)
		if err != nil {
			return "", fmt.Errorf("cue %d start: %w", i+1, err)
		}
		end, err := FormatTimestamp(cue.EndMs)
		if err != nil {
			return "", fmt.Errorf("cue %d end: %w", i+1, err)
		}

		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, start, end, cue.Text)
	}

	return b.String(), nil
}
