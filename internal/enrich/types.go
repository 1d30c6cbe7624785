package enrich

import (
	"fmt"

	"github.com/MimeLyc/cinefluent/internal/subtitle"
)

// Level is a coarse difficulty tier derived from word frequency.
type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

// Weight is the numeric value used for difficulty means.
func (l Level) Weight() float64 {
	switch l {
	case Advanced:
		return 3
	case Intermediate:
		return 2
	default:
		return 1
	}
}

// UnknownRank is the frequency rank assigned to words missing from the table.
const UnknownRank = 10000

// Thresholds are inclusive upper rank bounds for the beginner and
// intermediate tiers. Anything ranked above Intermediate is advanced.
type Thresholds struct {
	Beginner     int `json:"beginner"`
	Intermediate int `json:"intermediate"`
}

var DefaultThresholds = Thresholds{Beginner: 3000, Intermediate: 7000}

func (t Thresholds) Validate() error {
	if t.Beginner <= 0 || t.Intermediate <= 0 {
		return fmt.Errorf("difficulty thresholds must be positive: %+v", t)
	}
	if t.Beginner >= t.Intermediate {
		return fmt.Errorf("beginner threshold %d must be below intermediate threshold %d", t.Beginner, t.Intermediate)
	}
	return nil
}

// LevelFor maps a frequency rank to its tier.
func (t Thresholds) LevelFor(rank int) Level {
	switch {
	case rank <= t.Beginner:
		return Beginner
	case rank <= t.Intermediate:
		return Intermediate
	default:
		return Advanced
	}
}

// Word is a token with learning metadata attached.
type Word struct {
	Surface       string            `json:"word"`
	Lemma         string            `json:"lemma"`
	POS           string            `json:"pos_tag"`
	Definition    string            `json:"definition"`
	Translations  map[string]string `json:"translations,omitempty"`
	Level         Level             `json:"difficulty_level"`
	FrequencyRank int               `json:"frequency_rank"`
}

// Cue is a parsed cue plus its enriched words.
// DifficultyScore is the mean Level weight of Words, or 0 when Words is empty.
type Cue struct {
	subtitle.Cue
	Words           []Word  `json:"words"`
	DifficultyScore float64 `json:"difficulty_score"`
}

// Analyzer is the linguistic backend: tokenization, part-of-speech tagging
// and lemmatization.
type Analyzer interface {
	Tokenize(text string) []string
	// POSTag returns one tag per token.
	POSTag(tokens []string) []string
	Lemmatize(word, pos string) string
}

// FrequencyTable ranks words by corpus frequency, 1 being most common.
// Unknown words should return a value <= 0 or UnknownRank.
type FrequencyTable interface {
	Rank(word string) int
}

type Dictionary interface {
	Define(word, pos string) string
}

// Translator returns translations keyed by language code.
type Translator interface {
	Translate(word string) map[string]string
}

// LevelFor maps rank to a tier using t, falling back to DefaultThresholds
// when t is invalid.
func LevelFor(rank int, t Thresholds) Level {
	if t.Validate() != nil {
		t = DefaultThresholds
	}
	return t.LevelFor(rank)
}
