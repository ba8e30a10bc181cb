package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// PredictionCache stores raw predictions keyed by text digest.
type PredictionCache interface {
	Get(ctx context.Context, key string) (Prediction, bool, error)
	Set(ctx context.Context, key string, p Prediction) error
}

// CacheKey derives the cache key for a text under a backend namespace, so
// predictions of different models never mix.
func CacheKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "sentiment:" + namespace + ":" + hex.EncodeToString(sum[:])
}

// CachedClassifier consults the cache before the wrapped classifier. Cache
// errors are logged and never fail a classification.
type CachedClassifier struct {
	next      Classifier
	cache     PredictionCache
	namespace string
}

type cachedBatchClassifier struct {
	*CachedClassifier
	batch BatchClassifier
}

// NewCachedClassifier wraps next with cache. The returned classifier
// supports batching exactly when next does.
func NewCachedClassifier(next Classifier, cache PredictionCache, namespace string) Classifier {
	c := &CachedClassifier{next: next, cache: cache, namespace: namespace}
	if b, ok := next.(BatchClassifier); ok {
		return &cachedBatchClassifier{CachedClassifier: c, batch: b}
	}
	return c
}

func (c *CachedClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	key := CacheKey(c.namespace, text)
	if p, ok := c.lookup(ctx, key); ok {
		return p, nil
	}

	p, err := c.next.Classify(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	if _, err := Resolve(text, p); err == nil {
		c.store(ctx, key, p)
	}
	return p, nil
}

func (c *cachedBatchClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	out := make([]Prediction, len(texts))
	keys := make([]string, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		keys[i] = CacheKey(c.namespace, text)
		if p, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = p
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	predictions, err := c.batch.ClassifyBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(predictions) != len(missTexts) {
		return nil, malformed("batch returned %d predictions for %d texts", len(predictions), len(missTexts))
	}

	for j, p := range predictions {
		i := missIdx[j]
		out[i] = p
		if _, err := Resolve(texts[i], p); err == nil {
			c.store(ctx, keys[i], p)
		}
	}
	return out, nil
}

func (c *CachedClassifier) lookup(ctx context.Context, key string) (Prediction, bool) {
	p, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("[CachedClassifier] Cache lookup failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Prediction{}, false
	}
	return p, ok
}

func (c *CachedClassifier) store(ctx context.Context, key string, p Prediction) {
	if err := c.cache.Set(ctx, key, p); err != nil {
		slog.Warn("[CachedClassifier] Cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
