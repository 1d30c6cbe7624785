package segment

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/MimeLyc/cinefluent/internal/enrich"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

const (
	DefaultWindowSeconds = 30
	MaxVocabulary        = 10
)

// Segment is a time-bounded group of consecutive cues studied as one unit.
// FirstCue and LastCue are positions in the input cue slice.
type Segment struct {
	ID              string        `json:"id"`
	StartTime       float64       `json:"start_time"`
	EndTime         float64       `json:"end_time"`
	DifficultyScore float64       `json:"difficulty_score"`
	Vocabulary      []enrich.Word `json:"vocabulary"`
	CueCount        int           `json:"cue_count"`
	FirstCue        int           `json:"first_cue"`
	LastCue         int           `json:"last_cue"`
	// ExceedsWindow marks segments holding a cue that by itself lasts longer
	// than the window. Such segments are kept as they are.
	ExceedsWindow bool `json:"exceeds_window,omitempty"`
}

// Summary describes a processed subtitle document.
type Summary struct {
	TotalCues       int     `json:"total_cues"`
	TotalSegments   int     `json:"total_segments"`
	DurationSeconds float64 `json:"duration_seconds"`
	VocabularyCount int     `json:"vocabulary_count"`
	AvgDifficulty   float64 `json:"avg_difficulty"`
}

type Segmenter struct {
	window float64
	newID  func() string
}

// New returns a Segmenter with the given window in seconds. Non-positive
// windows select DefaultWindowSeconds.
func New(windowSeconds float64) *Segmenter {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return &Segmenter{
		window: windowSeconds,
		newID:  func() string { return uuid.NewString() },
	}
}

func (s *Segmenter) Window() float64 {
	return s.window
}

// Segment groups cues greedily: a cue opens a new segment when it starts more
// than the window after the current segment's start. Cues keep their input
// order and every cue lands in exactly one segment.
func (s *Segmenter) Segment(cues []enrich.Cue) []Segment {
	segments := make([]Segment, 0)
	if len(cues) == 0 {
		return segments
	}

	first := 0
	windowStart := cues[0].Start
	for i := 1; i < len(cues); i++ {
		if cues[i].Start > windowStart+s.window {
			segments = append(segments, s.build(cues, first, i))
			first = i
			windowStart = cues[i].Start
		}
	}
	segments = append(segments, s.build(cues, first, len(cues)))
	return segments
}

func (s *Segmenter) build(cues []enrich.Cue, from, to int) Segment {
	group := cues[from:to]
	seg := Segment{
		ID:        s.newID(),
		StartTime: group[0].Start,
		EndTime:   group[len(group)-1].End,
		CueCount:  len(group),
		FirstCue:  from,
		LastCue:   to - 1,
	}

	var total float64
	longest := 0.0
	for _, c := range group {
		total += c.DifficultyScore
		if d := c.Duration(); d > longest {
			longest = d
		}
		// overlapping cues may end after the last one
		if c.Start < seg.StartTime {
			seg.StartTime = c.Start
		}
		if c.End > seg.EndTime {
			seg.EndTime = c.End
		}
	}
	seg.DifficultyScore = total / float64(len(group))
	seg.Vocabulary = Vocabulary(group)

	if longest > s.window {
		seg.ExceedsWindow = true
		log.Warn("Segment at %.3fs holds a %.3fs cue, longer than the %.0fs window",
			seg.StartTime, longest, s.window)
	}
	return seg
}

// Vocabulary returns the unique non-beginner words of cues, hardest first and
// then in order of first appearance, truncated to MaxVocabulary.
func Vocabulary(cues []enrich.Cue) []enrich.Word {
	seen := make(map[string]struct{})
	vocab := make([]enrich.Word, 0)
	for _, c := range cues {
		for _, w := range c.Words {
			if w.Level == enrich.Beginner || w.Surface == "" {
				continue
			}
			key := strings.ToLower(w.Surface)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			vocab = append(vocab, w)
		}
	}
	sort.SliceStable(vocab, func(i, j int) bool {
		return vocab[i].Level.Weight() > vocab[j].Level.Weight()
	})
	if len(vocab) > MaxVocabulary {
		vocab = vocab[:MaxVocabulary]
	}
	return vocab
}

func Summarize(cues []enrich.Cue, segments []Segment) Summary {
	sum := Summary{
		TotalCues:     len(cues),
		TotalSegments: len(segments),
	}
	var total float64
	for _, c := range cues {
		total += c.DifficultyScore
		if c.End > sum.DurationSeconds {
			sum.DurationSeconds = c.End
		}
	}
	if len(cues) > 0 {
		sum.AvgDifficulty = total / float64(len(cues))
	}
	for _, seg := range segments {
		sum.VocabularyCount += len(seg.Vocabulary)
	}
	return sum
}
