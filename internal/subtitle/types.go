package subtitle

import (
	"fmt"
	"strings"
)

// Format identifies a supported subtitle container.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat normalizes a file extension or format name ("srt", ".vtt", "webvtt").
func ParseFormat(value string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".") {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	default:
		return "", newParseError(KindUnsupportedFormat, 0, fmt.Sprintf("unsupported subtitle format %q", value))
	}
}

// Cue is one timed caption unit. Start and End are fractional seconds.
type Cue struct {
	Index   int     `json:"index"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	RawText string  `json:"raw_text"` // source lines joined by "\n"
	Text    string  `json:"text"`     // cleaned, whitespace-collapsed
}

// Duration returns End - Start in seconds.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}
