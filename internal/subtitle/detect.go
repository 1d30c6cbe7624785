package subtitle

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectFormat picks a format from a file name or URL extension, falling back
// to sniffing the first bytes of data. Unknown content is treated as SRT.
func DetectFormat(name string, data []byte) Format {
	name = strings.ToLower(name)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if f, err := ParseFormat(filepath.Ext(name)); err == nil {
		return f
	}

	head := bytes.TrimPrefix(data, utf8BOM)
	if len(head) > 200 {
		head = head[:200]
	}
	if bytes.HasPrefix(bytes.TrimSpace(head), []byte("WEBVTT")) {
		return FormatVTT
	}
	return FormatSRT
}

// DetectLanguage returns the majority language of the cue texts, or
// language.Und when nothing can be detected.
func DetectLanguage(cues []Cue) language.Tag {
	counts := make(map[string]int)
	for _, cue := range cues {
		if cue.Text == "" {
			continue
		}
		code := whatlanggo.DetectLang(cue.Text).Iso6391()
		if code == "" {
			continue
		}
		counts[code]++
	}

	var topLang string
	var topCount int
	for lang, count := range counts {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}
	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}

var filenameLanguagePatterns = []struct {
	code     string
	patterns []string
}{
	{"en", []string{"english", "eng", ".en.", "en_"}},
	{"ja", []string{"japanese", "jpn", ".ja.", "jp_"}},
	{"es", []string{"spanish", "spa", ".es.", "es_"}},
	{"fr", []string{"french", "fra", ".fr.", "fr_"}},
	{"de", []string{"german", "ger", ".de.", "de_"}},
}

// LanguageFromFilename guesses a language code from naming conventions such as
// "movie.en.srt" or "movie_english.vtt". The second value is false when no
// pattern matched.
func LanguageFromFilename(name string) (string, bool) {
	base := strings.ToLower(filepath.Base(name))
	for _, entry := range filenameLanguagePatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(base, pattern) {
				return entry.code, true
			}
		}
	}
	return "", false
}
