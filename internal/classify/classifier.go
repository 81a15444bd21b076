// Package classify flags assistant answers that fail to answer the question.
//
// The shipped implementation is a phrase-match heuristic, not a confidence
// score: an answer that merely quotes one of the flagged phrases is a false
// positive, and a non-answer phrased some other way is a false negative.
// Both are accepted limitations of the heuristic.
package classify

import "strings"

// Classifier decides whether an answer should be treated as unanswered.
type Classifier interface {
	Unanswered(answer string) bool
}

// defaultPhrases are the canned "I don't know" responses observed from the
// assistant, in English and Indonesian. Matching is case-sensitive.
var defaultPhrases = []string{
	"I don't know",
	"I'm not sure",
	"I don't have specific information",
	"saya tidak tahu",
	"saya tidak yakin",
	"Saya tidak menemukan informasi",
}

// PhraseClassifier flags answers containing any of a fixed set of phrases
// as substrings.
type PhraseClassifier struct {
	phrases []string
}

// NewPhraseClassifier creates a PhraseClassifier. With no arguments it uses
// the default phrase set.
func NewPhraseClassifier(phrases ...string) *PhraseClassifier {
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}
	return &PhraseClassifier{phrases: phrases}
}

// Unanswered reports whether answer contains any flagged phrase.
func (c *PhraseClassifier) Unanswered(answer string) bool {
	for _, p := range c.phrases {
		if strings.Contains(answer, p) {
			return true
		}
	}
	return false
}
