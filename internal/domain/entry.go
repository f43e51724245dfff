package domain

import (
	"encoding/json"
	"math"
)

// Category is the label the classifier assigns to a submitted word.
type Category string

const (
	CategoryTest       Category = "test"
	CategoryRepetitive Category = "repetitive"
	CategoryMinimal    Category = "minimal"
	CategoryExpressive Category = "expressive"
	CategoryNeutral    Category = "neutral"
)

// Entry is one submitted data point. Timestamp doubles as the deletion key and
// is not unique: two appends in the same millisecond share it.
type Entry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Word      string   `json:"word"`
	Params    Params   `json:"params"`
	Analysis  Analysis `json:"analysis"`
}

// Params are the three client-supplied parameters of a submission.
type Params struct {
	Density    Number `json:"density"`
	Repetition Number `json:"repetition"`
	Distortion Number `json:"distortion"`
}

// Analysis is derived from the word at append time and never changes afterwards.
type Analysis struct {
	Sentiment         float64  `json:"sentiment"`
	WordCount         int      `json:"wordCount"`
	HasEmotionalWords bool     `json:"hasEmotionalWords"`
	Category          Category `json:"category"`
}

// Log is the ordered sequence of entries, insertion order = append order.
type Log []Entry

// Number is a parsed numeric parameter. NaN marks input that did not parse;
// it is written as JSON null and read back as NaN.
type Number float64

// NotANumber returns the non-numeric marker.
func NotANumber() Number {
	return Number(math.NaN())
}

// Equal reports whether n and o are the same number, treating two
// non-numeric markers as equal. The JSON form cannot tell them apart.
func (n Number) Equal(o Number) bool {
	return n == o || (math.IsNaN(float64(n)) && math.IsNaN(float64(o)))
}

// Valid reports whether n holds a finite number.
func (n Number) Valid() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid() {
		return []byte("null"), nil
	}
	if n == 0 {
		// negative zero is written as 0
		return []byte("0"), nil
	}
	return json.Marshal(float64(n))
}

func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NotANumber()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}
