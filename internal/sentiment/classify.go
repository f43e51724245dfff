package sentiment

import "github.com/pscheid92/databoard/internal/domain"

// Classify derives the stored analysis of a submitted word.
func Classify(text string) domain.Analysis {
	result := Analyze(text)
	return domain.Analysis{
		Sentiment:         result.Comparative,
		WordCount:         len(result.Tokens),
		HasEmotionalWords: len(result.Words) > 0,
		Category:          Categorize(text),
	}
}
