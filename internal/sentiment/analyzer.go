// Package sentiment maps raw model predictions onto a five level sentiment scale.
package sentiment

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_CONCURRENCY = 4
	DEFAULT_BATCH_SIZE  = 16
)

// Prediction is the raw answer of a binary sentiment model.
type Prediction struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the model capability consumed by the Analyzer.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// BatchClassifier is implemented by adapters that can score several texts
// in a single model invocation. Predictions must come back in input order.
type BatchClassifier interface {
	Classifier
	ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error)
}

// Analyzer turns text into bounded, labeled sentiment results. It holds no
// mutable state and is safe for concurrent use.
type Analyzer struct {
	classifier  Classifier
	batch       BatchClassifier
	concurrency int
	batchSize   int
	itemTimeout time.Duration
}

type Option func(*Analyzer)

// WithConcurrency bounds how many spans AnalyzeBulk classifies at once.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithBatchSize sets how many texts go into one batch call when the
// classifier supports batching.
func WithBatchSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithItemTimeout bounds each classifier call. Zero disables the bound.
func WithItemTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		a.itemTimeout = d
	}
}

func NewAnalyzer(classifier Classifier, opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier:  classifier,
		concurrency: DEFAULT_CONCURRENCY,
		batchSize:   DEFAULT_BATCH_SIZE,
	}
	if b, ok := classifier.(BatchClassifier); ok {
		a.batch = b
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies a single text. Classifier failures and malformed output
// are returned to the caller; no fallback is produced here.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if a.classifier == nil {
		return Result{}, unavailable(errNoClassifier)
	}

	if a.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.itemTimeout)
		defer cancel()
	}

	prediction, err := a.classifier.Classify(ctx, text)
	if err != nil {
		return Result{}, unavailable(err)
	}

	return Resolve(text, prediction)
}

// AnalyzeBulk classifies every text and returns results in input order.
// A failing item degrades to FallbackResult without touching its siblings.
func (a *Analyzer) AnalyzeBulk(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results
	}

	start := time.Now()
	step := 1
	if a.batch != nil {
		step = a.batchSize
	}

	// a plain group: one span failing must not cancel the others
	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for lo := 0; lo < len(texts); lo += step {
		hi := min(lo+step, len(texts))
		g.Go(func() error {
			a.analyzeSpan(ctx, lo, texts[lo:hi], results[lo:hi])
			return nil
		})
	}
	_ = g.Wait()

	fallbacks := 0
	for _, r := range results {
		if r.Fallback() {
			fallbacks++
		}
	}
	slog.Info("[Analyzer] Bulk analysis finished",
		slog.Int("items", len(texts)),
		slog.Int("fallbacks", fallbacks),
		slog.Duration("elapsed", time.Since(start)))

	return results
}

func (a *Analyzer) analyzeSpan(ctx context.Context, offset int, texts []string, out []Result) {
	if a.batch != nil && len(texts) > 1 {
		if a.analyzeBatch(ctx, offset, texts, out) {
			return
		}
	}

	for i, text := range texts {
		out[i] = a.analyzeOrFallback(ctx, offset+i, text)
	}
}

// analyzeBatch reports false when the batch call itself failed, in which
// case the caller retries the span item by item.
func (a *Analyzer) analyzeBatch(ctx context.Context, offset int, texts []string, out []Result) bool {
	if a.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.itemTimeout)
		defer cancel()
	}

	predictions, err := a.batch.ClassifyBatch(ctx, texts)
	if err == nil && len(predictions) != len(texts) {
		err = malformed("batch returned %d predictions for %d texts", len(predictions), len(texts))
	}
	if err != nil {
		slog.Warn("[Analyzer] Batch classification failed, retrying items one by one",
			slog.Int("offset", offset),
			slog.Int("size", len(texts)),
			slog.String("error", err.Error()))
		return false
	}

	for i, p := range predictions {
		r, err := Resolve(texts[i], p)
		if err != nil {
			logFallback(offset+i, err)
			r = FallbackResult(texts[i])
		}
		out[i] = r
	}
	return true
}

func (a *Analyzer) analyzeOrFallback(ctx context.Context, index int, text string) Result {
	r, err := a.Analyze(ctx, text)
	if err != nil {
		logFallback(index, err)
		return FallbackResult(text)
	}
	return r
}

func logFallback(index int, err error) {
	slog.Warn("[Analyzer] Classification failed, using neutral fallback",
		slog.Int("index", index),
		slog.String("error", err.Error()))
}

// Resolve validates a prediction and builds the matching result.
func Resolve(text string, p Prediction) (Result, error) {
	if !p.Label.Valid() {
		return Result{}, malformed("unknown label %q", p.Label)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return Result{}, malformed("confidence %v outside [0, 1]", p.Confidence)
	}

	score := Normalize(p.Label, p.Confidence)
	return Result{
		text:       text,
		score:      score,
		category:   Categorize(score),
		confidence: p.Confidence,
	}, nil
}
