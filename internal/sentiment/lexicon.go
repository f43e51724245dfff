package sentiment

import (
	"math"
	"sync"

	"github.com/jonreiter/govader"
)

// vaderAlpha is the constant VADER uses to normalize a valence sum into its
// compound score.
const vaderAlpha = 15

var vader = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "without": {}, "cannot": {},
	"don't": {}, "doesn't": {}, "didn't": {}, "isn't": {}, "aren't": {},
	"wasn't": {}, "weren't": {}, "won't": {}, "can't": {}, "couldn't": {},
	"shouldn't": {}, "wouldn't": {}, "hasn't": {}, "haven't": {}, "ain't": {},
}

// polarity returns the lexicon valence of a single token, in [-4, 4], and
// whether the lexicon knows the token at all.
func polarity(token string) (float64, bool) {
	compound := vader().PolarityScores(token).Compound
	if compound == 0 {
		return 0, false
	}
	return valenceFromCompound(compound), true
}

// valenceFromCompound inverts compound = v / sqrt(v*v + alpha) for a text
// holding one scored word. Lexicon valences have one decimal, so rounding to
// it absorbs the rounding of the compound score.
func valenceFromCompound(compound float64) float64 {
	if compound >= 1 || compound <= -1 {
		compound = math.Copysign(0.9999, compound)
	}
	v := compound * math.Sqrt(vaderAlpha/(1-compound*compound))
	return math.Round(v*10) / 10
}
