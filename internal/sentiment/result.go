package sentiment

import (
	"encoding/json"
	"math"
)

// Result is an immutable classification record. Its category is always the
// one Categorize assigns to its score; the only ways to build one are
// Resolve and FallbackResult.
type Result struct {
	text       string
	score      float64
	category   Category
	confidence float64
	fallback   bool
}

// FallbackResult is the neutral placeholder used when a bulk item could not
// be classified. It differs from a genuine neutral result only in Fallback.
func FallbackResult(text string) Result {
	return Result{
		text:     text,
		score:    0,
		category: CategoryNeutral,
		fallback: true,
	}
}

func (r Result) Text() string { return r.text }
func (r Result) Score() float64 { return r.score }
func (r Result) Category() Category { return r.category }
func (r Result) Confidence() float64 { return r.confidence }
func (r Result) Emoji() string { return r.category.Emoji() }
func (r Result) Description() string { return r.category.Description() }
func (r Result) Fallback() bool { return r.fallback }
func (r Result) IsZero() bool { return r.category == "" }

// Round3 rounds to three decimals, the precision results are displayed and stored with.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

type resultJSON struct {
	Text        string   `json:"text"`
	Score       float64  `json:"score"`
	Category    Category `json:"category"`
	Emoji       string   `json:"emoji"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Fallback    bool     `json:"fallback,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Text:        r.text,
		Score:       Round3(r.score),
		Category:    r.category,
		Emoji:       r.Emoji(),
		Description: r.Description(),
		Confidence:  Round3(r.confidence),
		Fallback:    r.fallback,
	})
}
