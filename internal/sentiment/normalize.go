package sentiment

import "strings"

// Label is the binary polarity produced by a classifier.
type Label string

const (
	LabelPositive Label = "POSITIVE"
	LabelNegative Label = "NEGATIVE"
)

// ParseLabel normalizes the label spellings used by the supported backends
// ("POSITIVE", "positive", "LABEL_1", ...).
func ParseLabel(raw string) (Label, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "POSITIVE", "POS", "LABEL_1":
		return LabelPositive, true
	case "NEGATIVE", "NEG", "LABEL_0":
		return LabelNegative, true
	default:
		return Label(raw), false
	}
}

func (l Label) Valid() bool {
	return l == LabelPositive || l == LabelNegative
}

// Normalize maps a label and its raw confidence onto a signed score in [-1, 1].
//
// POSITIVE maps to 2c-1 and NEGATIVE to 1-2c, so a confidence of 0.5 lands
// on 0 for either label. An unconfident model therefore reads as near
// neutral even when it picked a side.
func Normalize(label Label, confidence float64) float64 {
	if label == LabelNegative {
		return 1 - 2*confidence
	}
	return 2*confidence - 1
}
