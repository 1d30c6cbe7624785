package enrich

import (
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/MimeLyc/cinefluent/pkg/log"
)

// ProseAnalyzer tags tokens with the averaged perceptron model shipped with
// prose and maps its Penn Treebank tags onto universal tags. Lemmas come from
// the suffix rules of RuleAnalyzer.
type ProseAnalyzer struct {
	rules *RuleAnalyzer
}

func NewProseAnalyzer() *ProseAnalyzer {
	return &ProseAnalyzer{rules: NewRuleAnalyzer()}
}

func (a *ProseAnalyzer) Tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		log.Debug("prose tokenize failed, using rules: %v", err)
		return a.rules.Tokenize(text)
	}
	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Text != "" {
			out = append(out, tok.Text)
		}
	}
	return out
}

// POSTag tags tokens in context. Tokens that the model splits further take
// the tag of their first piece; anything that cannot be aligned is tagged by
// the rules.
func (a *ProseAnalyzer) POSTag(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	doc, err := prose.NewDocument(strings.Join(tokens, " "),
		prose.WithSegmentation(false),
		prose.WithExtraction(false))
	if err != nil {
		log.Debug("prose tagging failed, using rules: %v", err)
		return a.rules.POSTag(tokens)
	}
	tagged := doc.Tokens()

	tags := make([]string, len(tokens))
	j := 0
	for i, token := range tokens {
		if closed, ok := closedClassTags[strings.ToLower(token)]; ok {
			tags[i] = closed
		}
		if j >= len(tagged) {
			if tags[i] == "" {
				tags[i] = a.rules.tag(strings.ToLower(token))
			}
			continue
		}
		if tags[i] == "" {
			tags[i] = UniversalTag(tagged[j].Tag)
		}
		consumed := len(tagged[j].Text)
		j++
		for consumed < len(token) && j < len(tagged) {
			consumed += len(tagged[j].Text)
			j++
		}
	}
	return tags
}

func (a *ProseAnalyzer) Lemmatize(word, pos string) string {
	return a.rules.Lemmatize(word, pos)
}

// UniversalTag maps a Penn Treebank tag to its universal counterpart.
func UniversalTag(penn string) string {
	switch {
	case penn == "":
		return "X"
	case strings.HasPrefix(penn, "NN"):
		return "NOUN"
	case strings.HasPrefix(penn, "VB"):
		return "VERB"
	case penn == "MD":
		return "AUX"
	case strings.HasPrefix(penn, "JJ"):
		return "ADJ"
	case strings.HasPrefix(penn, "RB"), penn == "WRB":
		return "ADV"
	}
	switch penn {
	case "PRP", "PRP$", "WP", "WP$", "EX":
		return "PRON"
	case "DT", "PDT", "WDT":
		return "DET"
	case "IN":
		return "ADP"
	case "CC":
		return "CCONJ"
	case "CD":
		return "NUM"
	case "UH":
		return "INTJ"
	case "RP", "TO", "POS":
		return "PART"
	case ".", ",", ":", "(", ")", "``", "''", "\"", "#", "$", "-LRB-", "-RRB-", "HYPH", "NFP":
		return "PUNCT"
	case "SYM":
		return "SYM"
	}
	return "X"
}
