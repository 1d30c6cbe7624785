package enrich

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kljensen/snowball/english"
)

// MemoryLexicon is an in-memory FrequencyTable, Dictionary and Translator.
// It is safe for concurrent reads and writes. Words missing from the rank
// table are looked up by their Snowball stem.
type MemoryLexicon struct {
	mu           sync.RWMutex
	ranks        map[string]int
	stems        map[string]int
	definitions  map[string]string
	translations map[string]map[string]string
}

func NewMemoryLexicon() *MemoryLexicon {
	return &MemoryLexicon{
		ranks:        make(map[string]int),
		stems:        make(map[string]int),
		definitions:  make(map[string]string),
		translations: make(map[string]map[string]string),
	}
}

// NewDefaultLexicon seeds a lexicon with the most common English words.
func NewDefaultLexicon() *MemoryLexicon {
	l := NewMemoryLexicon()
	for i, w := range commonEnglishWords {
		if _, ok := l.ranks[w]; !ok {
			l.setRankLocked(w, i+1)
		}
	}
	return l
}

func (l *MemoryLexicon) SetRank(word string, rank int) {
	l.mu.Lock()
	l.setRankLocked(strings.ToLower(word), rank)
	l.mu.Unlock()
}

// setRankLocked keeps the best (lowest) rank seen for each stem.
func (l *MemoryLexicon) setRankLocked(word string, rank int) {
	l.ranks[word] = rank
	if rank <= 0 {
		return
	}
	stem := english.Stem(word, true)
	if cur, ok := l.stems[stem]; !ok || rank < cur {
		l.stems[stem] = rank
	}
}

func (l *MemoryLexicon) SetDefinition(word, definition string) {
	l.mu.Lock()
	l.definitions[strings.ToLower(word)] = definition
	l.mu.Unlock()
}

func (l *MemoryLexicon) SetTranslation(word, lang, translation string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strings.ToLower(word)
	if l.translations[key] == nil {
		l.translations[key] = make(map[string]string)
	}
	l.translations[key][lang] = translation
}

func (l *MemoryLexicon) Rank(word string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w := strings.ToLower(word)
	if r, ok := l.ranks[w]; ok && r > 0 {
		return r
	}
	if r, ok := l.stems[english.Stem(w, true)]; ok {
		return r
	}
	return UnknownRank
}

// Define returns a stored definition or a part-of-speech placeholder.
func (l *MemoryLexicon) Define(word, pos string) string {
	l.mu.RLock()
	def, ok := l.definitions[strings.ToLower(word)]
	l.mu.RUnlock()
	if ok {
		return def
	}
	switch pos {
	case "NOUN":
		return fmt.Sprintf("A noun: %s", word)
	case "VERB":
		return fmt.Sprintf("A verb: %s", word)
	case "ADJ":
		return fmt.Sprintf("An adjective: %s", word)
	case "ADV":
		return fmt.Sprintf("An adverb: %s", word)
	default:
		return fmt.Sprintf("A word: %s", word)
	}
}

func (l *MemoryLexicon) Translate(word string) map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.translations[strings.ToLower(word)]
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

var commonEnglishWords = []string{
	"the", "of", "and", "a", "to", "in", "is", "you", "that", "it",
	"he", "was", "for", "on", "are", "as", "with", "his", "they", "i",
	"at", "be", "this", "have", "from", "or", "one", "had", "by", "word",
	"but", "not", "what", "all", "were", "we", "when", "your", "can", "said",
	"there", "each", "which", "she", "do", "how", "their", "if", "will", "up",
	"other", "about", "out", "many", "then", "them", "these", "so", "some", "her",
	"would", "make", "like", "into", "him", "time", "has", "two", "more", "very",
	"after", "words", "here", "should", "way", "its", "only", "new", "work", "part",
	"take", "get", "place", "made", "live", "where", "much", "too", "any", "may",
	"say", "small", "every", "found", "still", "between", "name", "home", "big", "hello",
	"world", "know", "go", "good", "come", "think", "see", "look", "want", "give",
	"day", "man", "thing", "tell", "life", "back", "need", "feel", "try", "call",
	"today", "welcome", "our", "going", "right", "now", "yes", "well", "okay", "thank",
}

// DefaultStopWords is a compact English stop-word list.
var DefaultStopWords = toSet(
	"a", "about", "above", "after", "again", "all", "am", "an", "and", "any", "are", "as", "at",
	"be", "been", "before", "being", "below", "between", "both", "but", "by",
	"can", "could", "did", "do", "does", "doing", "down", "during",
	"each", "few", "for", "from", "further", "had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "now",
	"of", "off", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
	"same", "she", "should", "so", "some", "such",
	"than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with", "would",
	"you", "your", "yours", "yourself", "yourselves",
	"i'm", "you're", "it's", "we'll", "we're", "don't", "can't", "that's", "i'll", "he's", "she's", "they're",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
