package subtitle

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// 00:02:16,612 --> 00:02:19,376 (a dot separator is tolerated)
	srtTimingRe = regexp.MustCompile(`^(\d+:\d{2}:\d{2}[,.]\d{1,3})\s*-->\s*(\d+:\d{2}:\d{2}[,.]\d{1,3})`)
	srtClockRe  = regexp.MustCompile(`^(\d+):([0-5]\d):([0-5]\d)[,.](\d{1,3})$`)
	// hours are optional in WebVTT
	vttClockRe = regexp.MustCompile(`^(?:(\d+):)?([0-5]\d):([0-5]\d)\.(\d{3})$`)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes data into cues. It returns either every cue of the file or a
// *ParseError; partial results are never returned.
func Parse(data []byte, format Format) ([]Cue, error) {
	text, err := decode(data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSRT:
		return parseSRT(text)
	case FormatVTT:
		return parseVTT(text)
	default:
		return nil, newParseError(KindUnsupportedFormat, 0, fmt.Sprintf("unsupported subtitle format %q", format))
	}
}

func decode(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newParseError(KindEncoding, 0, "subtitle file is empty")
	}
	if !utf8.Valid(data) {
		return nil, newParseError(KindEncoding, 0, "subtitle file is not valid UTF-8")
	}
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n"), nil
}

func parseSRT(lines []string) ([]Cue, error) {
	var cues []Cue

	current := Cue{}
	state := "index" // index -> time -> text
	var textLines []string

	flush := func() {
		current.RawText = strings.Join(textLines, "\n")
		current.Text = CleanText(strings.Join(textLines, " "))
		cues = append(cues, current)
		current = Cue{}
		textLines = nil
	}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				return nil, newParseError(KindMalformed, lineNo, fmt.Sprintf("expected cue index, got %q", line))
			}
			current.Index = index
			state = "time"

		case "time":
			m := srtTimingRe.FindStringSubmatch(line)
			if m == nil {
				return nil, newParseError(KindMalformed, lineNo, fmt.Sprintf("expected timing line, got %q", line))
			}
			start, end, err := parseRange(m[1], m[2], srtClockRe, lineNo)
			if err != nil {
				return nil, err
			}
			current.Start = start
			current.End = end
			state = "text"

		case "text":
			if line == "" {
				flush()
				state = "index"
				continue
			}
			if srtTimingRe.MatchString(line) {
				return nil, newParseError(KindMalformed, lineNo, "timing line inside cue text, missing blank line between cues")
			}
			textLines = append(textLines, line)
		}
	}

	switch state {
	case "time":
		return nil, newParseError(KindMalformed, len(lines), "cue index without timing line")
	case "text":
		flush()
	}

	if len(cues) == 0 {
		return nil, newParseError(KindMalformed, 0, "no cues found")
	}

	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Index < cues[j].Index
	})
	return cues, nil
}

func parseVTT(lines []string) ([]Cue, error) {
	header := strings.TrimSpace(lines[0])
	if header != "WEBVTT" && !strings.HasPrefix(header, "WEBVTT ") && !strings.HasPrefix(header, "WEBVTT\t") {
		return nil, newParseError(KindMalformed, 1, "missing WEBVTT header")
	}

	// header block runs until the first blank line
	pos := 1
	for pos < len(lines) && strings.TrimSpace(lines[pos]) != "" {
		pos++
	}

	var cues []Cue
	for pos < len(lines) {
		for pos < len(lines) && strings.TrimSpace(lines[pos]) == "" {
			pos++
		}
		if pos >= len(lines) {
			break
		}
		blockStart := pos
		var block []string
		for pos < len(lines) && strings.TrimSpace(lines[pos]) != "" {
			block = append(block, strings.TrimSpace(lines[pos]))
			pos++
		}

		first := block[0]
		if first == "NOTE" || strings.HasPrefix(first, "NOTE ") || first == "STYLE" || first == "REGION" {
			continue
		}

		timingAt := 0
		if !strings.Contains(first, "-->") {
			// first line is a cue identifier
			timingAt = 1
		}
		if timingAt >= len(block) || !strings.Contains(block[timingAt], "-->") {
			return nil, newParseError(KindMalformed, blockStart+1, fmt.Sprintf("expected timing line, got %q", first))
		}

		lineNo := blockStart + timingAt + 1
		startRaw, rest, _ := strings.Cut(block[timingAt], "-->")
		endFields := strings.Fields(rest)
		if len(endFields) == 0 {
			return nil, newParseError(KindMalformed, lineNo, "missing cue end time")
		}
		start, end, err := parseRange(strings.TrimSpace(startRaw), endFields[0], vttClockRe, lineNo)
		if err != nil {
			return nil, err
		}

		textLines := block[timingAt+1:]
		cues = append(cues, Cue{
			Index:   len(cues) + 1,
			Start:   start,
			End:     end,
			RawText: strings.Join(textLines, "\n"),
			Text:    CleanText(strings.Join(textLines, " ")),
		})
	}

	if len(cues) == 0 {
		return nil, newParseError(KindMalformed, 0, "no cues found")
	}
	return cues, nil
}

func parseRange(startRaw, endRaw string, clock *regexp.Regexp, lineNo int) (float64, float64, error) {
	start, ok := parseClock(startRaw, clock)
	if !ok {
		return 0, 0, newParseError(KindMalformed, lineNo, fmt.Sprintf("invalid timestamp %q", startRaw))
	}
	end, ok := parseClock(endRaw, clock)
	if !ok {
		return 0, 0, newParseError(KindMalformed, lineNo, fmt.Sprintf("invalid timestamp %q", endRaw))
	}
	if end <= start {
		return 0, 0, newParseError(KindTiming, lineNo, fmt.Sprintf("end %s does not follow start %s", endRaw, startRaw))
	}
	return start, end, nil
}

// parseClock converts a matched timestamp into seconds. Milliseconds are
// summed as integers so that whole-second values stay exact.
func parseClock(value string, clock *regexp.Regexp) (float64, bool) {
	m := clock.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, false
	}
	hours := 0
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
	}
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac := m[4]
	for len(frac) < 3 {
		frac += "0"
	}
	millis, _ := strconv.Atoi(frac)

	total := ((hours*60+minutes)*60+seconds)*1000 + millis
	return float64(total) / 1000, true
}
