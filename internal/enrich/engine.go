package enrich

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MimeLyc/cinefluent/internal/subtitle"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

// Options wires the engine's pluggable backends. A nil Analyzer or
// Frequencies degrades enrichment to pass-through.
type Options struct {
	Analyzer    Analyzer
	Frequencies FrequencyTable
	Dictionary  Dictionary
	Translator  Translator
	Thresholds  Thresholds
	// StopWords are compared in lower case. Nil selects DefaultStopWords.
	StopWords map[string]struct{}
}

type Engine struct {
	analyzer    Analyzer
	frequencies FrequencyTable
	dictionary  Dictionary
	translator  Translator
	thresholds  Thresholds
	stopWords   map[string]struct{}
}

func NewEngine(opts Options) *Engine {
	thresholds := opts.Thresholds
	if thresholds.Validate() != nil {
		thresholds = DefaultThresholds
	}
	stop := opts.StopWords
	if stop == nil {
		stop = DefaultStopWords
	}
	return &Engine{
		analyzer:    opts.Analyzer,
		frequencies: opts.Frequencies,
		dictionary:  opts.Dictionary,
		translator:  opts.Translator,
		thresholds:  thresholds,
		stopWords:   stop,
	}
}

// NewDefaultEngine uses the prose tagger and the built-in lexicon.
func NewDefaultEngine(thresholds Thresholds) *Engine {
	lexicon := NewDefaultLexicon()
	return NewEngine(Options{
		Analyzer:    NewProseAnalyzer(),
		Frequencies: lexicon,
		Dictionary:  lexicon,
		Translator:  lexicon,
		Thresholds:  thresholds,
	})
}

// Degraded reports whether the engine is missing a backend it needs to
// produce words.
func (e *Engine) Degraded() bool {
	return e == nil || e.analyzer == nil || e.frequencies == nil
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Enrich annotates every cue. It never fails: without a backend each cue is
// returned with no words and a zero score. When targetLanguage is set only
// that translation is kept.
func (e *Engine) Enrich(cues []subtitle.Cue, targetLanguage string) []Cue {
	out := make([]Cue, len(cues))
	if e.Degraded() {
		if len(cues) > 0 {
			log.Warn("EnrichmentDegraded: no linguistic backend configured, %d cues passed through", len(cues))
		}
		for i, c := range cues {
			out[i] = Cue{Cue: c, Words: []Word{}}
		}
		return out
	}

	target := normalizeLanguage(targetLanguage)
	lower := cases.Lower(language.Und)
	for i, c := range cues {
		words := e.enrichText(c.Text, target, lower)
		out[i] = Cue{
			Cue:             c,
			Words:           words,
			DifficultyScore: Score(words),
		}
	}
	return out
}

func (e *Engine) enrichText(text, target string, lower cases.Caser) []Word {
	words := make([]Word, 0)
	if strings.TrimSpace(text) == "" {
		return words
	}

	tokens := e.analyzer.Tokenize(text)
	tags := e.analyzer.POSTag(tokens)
	for i, token := range tokens {
		folded := lower.String(token)
		if !hasLetterOrDigit(folded) || utf8.RuneCountInString(folded) < 2 {
			continue
		}
		if _, stop := e.stopWords[folded]; stop {
			continue
		}

		pos := "X"
		if i < len(tags) && tags[i] != "" {
			pos = tags[i]
		}
		rank := e.frequencies.Rank(folded)
		if rank <= 0 {
			rank = UnknownRank
		}

		word := Word{
			Surface:       token,
			Lemma:         lower.String(e.analyzer.Lemmatize(folded, pos)),
			POS:           pos,
			Level:         e.thresholds.LevelFor(rank),
			FrequencyRank: rank,
		}
		if e.dictionary != nil {
			word.Definition = e.dictionary.Define(folded, pos)
		}
		if e.translator != nil {
			word.Translations = filterTranslations(e.translator.Translate(folded), target)
		}
		words = append(words, word)
	}
	return words
}

// Score is the mean Level weight of words, 0 for none.
func Score(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var total float64
	for _, w := range words {
		total += w.Level.Weight()
	}
	return total / float64(len(words))
}

func filterTranslations(all map[string]string, target string) map[string]string {
	if len(all) == 0 {
		return nil
	}
	if target == "" {
		out := make(map[string]string, len(all))
		for k, v := range all {
			out[k] = v
		}
		return out
	}
	if v, ok := all[target]; ok {
		return map[string]string{target: v}
	}
	return nil
}

func normalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
