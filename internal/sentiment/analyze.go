package sentiment

import "strings"

// Result is the raw analysis of a text.
type Result struct {
	Score       float64
	Comparative float64
	Tokens      []string
	Words       []string
	Positive    []string
	Negative    []string
}

var punctuation = strings.NewReplacer(
	"\n", " ", ".", " ", ",", " ", "/", " ", "#", " ", "!", " ", "?", " ",
	"$", " ", "%", " ", "^", " ", "&", " ", "*", " ", ";", " ", ":", " ",
	"{", " ", "}", " ", "=", " ", "_", " ", "`", " ", "\"", " ", "~", " ",
	"(", " ", ")", " ",
)

// Tokenize lower-cases text, blanks out punctuation and splits on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(punctuation.Replace(strings.ToLower(text)))
}

// Analyze sums the lexicon valence of every token. A negator directly before
// a scored word flips that word's score. Comparative is score per token, 0
// for empty text.
func Analyze(text string) Result {
	tokens := Tokenize(text)

	result := Result{Tokens: tokens}
	for i, token := range tokens {
		score, ok := polarity(token)
		if !ok {
			continue
		}
		if i > 0 {
			if _, negated := negators[tokens[i-1]]; negated {
				score = -score
			}
		}

		result.Score += score
		result.Words = append(result.Words, token)
		switch {
		case score > 0:
			result.Positive = append(result.Positive, token)
		case score < 0:
			result.Negative = append(result.Negative, token)
		}
	}

	if len(tokens) > 0 {
		result.Comparative = result.Score / float64(len(tokens))
	}
	return result
}
