package subtitle

import (
	"regexp"
	"strings"
)

var (
	markupTagRe    = regexp.MustCompile(`<[^>]+>`)
	assOverrideRe  = regexp.MustCompile(`\{[^}]*\}`)
	bracketedRe    = regexp.MustCompile(`\[[^\]]*\]`)
	parentheticRe  = regexp.MustCompile(`\([^)]*\)`)
	musicSpanRe    = regexp.MustCompile(`♪[^♪]*♪|♫[^♫]*♫`)
	strayMusicNote = strings.NewReplacer("♪", " ", "♫", " ")
)

// CleanText strips markup, bracketed annotations, stage directions and sung
// lyrics, then collapses whitespace.
func CleanText(text string) string {
	text = markupTagRe.ReplaceAllString(text, " ")
	text = assOverrideRe.ReplaceAllString(text, " ")
	text = bracketedRe.ReplaceAllString(text, " ")
	text = parentheticRe.ReplaceAllString(text, " ")
	text = musicSpanRe.ReplaceAllString(text, " ")
	text = strayMusicNote.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
