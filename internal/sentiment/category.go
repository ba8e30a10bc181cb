package sentiment

import (
	"fmt"
	"math"
)

type Category string

const (
	CategoryVeryPositive Category = "VERY_POSITIVE"
	CategoryPositive     Category = "POSITIVE"
	CategoryNeutral      Category = "NEUTRAL"
	CategoryNegative     Category = "NEGATIVE"
	CategoryVeryNegative Category = "VERY_NEGATIVE"
)

type threshold struct {
	min         float64
	category    Category
	emoji       string
	description string
}

// thresholds must stay sorted by strictly descending min and end at -Inf.
var thresholds = []threshold{
	{min: 0.8, category: CategoryVeryPositive, emoji: "😄", description: "Very Positive"},
	{min: 0.4, category: CategoryPositive, emoji: "🙂", description: "Positive"},
	{min: -0.4, category: CategoryNeutral, emoji: "😐", description: "Neutral"},
	{min: -0.8, category: CategoryNegative, emoji: "🙁", description: "Negative"},
	{min: math.Inf(-1), category: CategoryVeryNegative, emoji: "😢", description: "Very Negative"},
}

func init() {
	if err := checkThresholds(thresholds); err != nil {
		panic(err)
	}
}

func checkThresholds(table []threshold) error {
	if len(table) == 0 {
		return fmt.Errorf("[Sentiment] category table is empty")
	}
	for i := 1; i < len(table); i++ {
		if table[i].min >= table[i-1].min {
			return fmt.Errorf("[Sentiment] category table out of order at %s", table[i].category)
		}
	}
	if last := table[len(table)-1]; !math.IsInf(last.min, -1) {
		return fmt.Errorf("[Sentiment] last category %s must have no lower bound", last.category)
	}
	return nil
}

// Categorize returns the first category whose minimum bound is <= score.
// Boundary values belong to the higher category. NaN falls through to the
// lowest category.
func Categorize(score float64) Category {
	for _, t := range thresholds {
		if score >= t.min {
			return t.category
		}
	}
	return thresholds[len(thresholds)-1].category
}

// Categories lists every category from most positive to most negative.
func Categories() []Category {
	out := make([]Category, len(thresholds))
	for i, t := range thresholds {
		out[i] = t.category
	}
	return out
}

func lookup(c Category) (threshold, bool) {
	for _, t := range thresholds {
		if t.category == c {
			return t, true
		}
	}
	return threshold{}, false
}

func (c Category) Emoji() string {
	t, _ := lookup(c)
	return t.emoji
}

func (c Category) Description() string {
	t, _ := lookup(c)
	return t.description
}

// MinScore is the inclusive lower bound of the category.
func (c Category) MinScore() float64 {
	t, ok := lookup(c)
	if !ok {
		return math.NaN()
	}
	return t.min
}

func (c Category) Valid() bool {
	_, ok := lookup(c)
	return ok
}

func (c Category) String() string {
	return string(c)
}
