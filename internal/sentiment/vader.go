package sentiment

import (
	"context"
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders markdown and strips the resulting markup so
// emphasis and links do not skew the lexicon.
func ConvertMarkdownToText(input string) string {
	input = RemoveLinks(input)
	// no smartypants: "it's" would become an entity the lexicon misses.
	// Renderers keep state, so each call gets its own.
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{})
	output := blackfriday.Run([]byte(input),
		blackfriday.WithNoExtensions(),
		blackfriday.WithRenderer(renderer))
	plainText := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))
	return strings.Join(strings.Fields(plainText), " ")
}

// VaderClassifier is a lexicon based adapter that needs no model download.
// The VADER compound score c in [-1, 1] is reported as the label sign(c)
// with confidence (1+|c|)/2, so normalizing it gives back c.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *VaderClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	plainText := ConvertMarkdownToText(text)
	if plainText == "" {
		return Prediction{}, ErrBlankText
	}

	compound := v.analyzer.PolarityScores(plainText).Compound

	label := LabelPositive
	if compound < 0 {
		label = LabelNegative
	}

	return Prediction{
		Label:      label,
		Confidence: (1 + math.Abs(compound)) / 2,
	}, nil
}
