package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Backend is a ready classifier plus whatever has to be released when the
// process stops. Health is nil for backends that cannot be probed.
type Backend struct {
	Name       string
	Classifier sentiment.Classifier
	Health     HealthChecker
	closers    []func()
}

func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// NewBackend builds the classifier named by cfg.Backend and, when cache is
// non-nil, memoizes its predictions there.
func NewBackend(cfg config.ClassifierConfig, cache sentiment.PredictionCache) (*Backend, error) {
	b := &Backend{Name: cfg.Backend}

	switch cfg.Backend {
	case config.CLASSIFIER_VADER:
		b.Classifier = sentiment.NewVaderClassifier()
	case config.CLASSIFIER_HUGOT:
		h, err := NewHugotClassifier(cfg.HugotModel, cfg.HugotModelDir)
		if err != nil {
			return nil, err
		}
		b.Classifier = h
		b.closers = append(b.closers, func() {
			if err := h.Close(); err != nil {
				slog.Warn("[ClassifierFactory] Failed to destroy hugot session", slog.String("error", err.Error()))
			}
		})
	case config.CLASSIFIER_HUGGINGFACE:
		b.Classifier = NewHuggingFaceClient(cfg.HuggingFaceEndpoint, cfg.HuggingFaceToken, cfg.HuggingFaceTimeout)
	case config.CLASSIFIER_OPENAI:
		o, err := NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		b.Classifier = o
	default:
		return nil, fmt.Errorf("[ClassifierFactory] unknown classifier backend %q", cfg.Backend)
	}

	// probe the backend itself, never the cache in front of it
	if checker, ok := b.Classifier.(HealthChecker); ok {
		b.Health = checker
	}
	if cache != nil {
		b.Classifier = sentiment.NewCachedClassifier(b.Classifier, cache, cfg.Backend)
	}

	slog.Info("[ClassifierFactory] Classifier ready",
		slog.String("backend", cfg.Backend),
		slog.Bool("cached", cache != nil),
		slog.Bool("health_checked", b.Health != nil))
	return b, nil
}
