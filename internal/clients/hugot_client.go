package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

const DEFAULT_HUGOT_MODEL = "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"

// HugotClassifier runs a local ONNX text-classification model in process.
type HugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline

	// the pipeline is not safe for concurrent runs
	mu sync.Mutex
}

// NewHugotClassifier loads modelName from modelDir, downloading it first
// when it is not there yet.
func NewHugotClassifier(modelName, modelDir string) (*HugotClassifier, error) {
	if modelName == "" {
		modelName = DEFAULT_HUGOT_MODEL
	}

	if err := os.MkdirAll(modelDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		slog.Info("[HugotClassifier] Model not found, downloading...",
			slog.String("model", modelName))
		modelPath, err = hugot.DownloadModel(modelName, modelDir, hugot.NewDownloadOptions())
		if err != nil {
			return nil, fmt.Errorf("%w: failed to download model %s: %w",
				sentiment.ErrClassifierUnavailable, modelName, err)
		}
		slog.Info("[HugotClassifier] Model downloaded successfully", slog.String("path", modelPath))
	} else {
		slog.Info("[HugotClassifier] Using existing model", slog.String("path", modelPath))
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "moodmeterSentimentPipeline",
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	return &HugotClassifier{session: session, pipeline: pipeline}, nil
}

func (h *HugotClassifier) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	predictions, err := h.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return sentiment.Prediction{}, err
	}
	return predictions[0], nil
}

func (h *HugotClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]sentiment.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, sentiment.ErrBlankText
		}
	}

	h.mu.Lock()
	output, err := h.pipeline.RunPipeline(texts)
	h.mu.Unlock()
	if err != nil {
		slog.Warn("[HugotClassifier] Pipeline run failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", sentiment.ErrClassifierUnavailable, err)
	}

	return predictionsFromOutput(output.ClassificationOutputs, len(texts))
}

func predictionsFromOutput(outputs [][]pipelines.ClassificationOutput, want int) ([]sentiment.Prediction, error) {
	if len(outputs) != want {
		return nil, fmt.Errorf("%w: got %d results for %d inputs",
			sentiment.ErrMalformedClassifierOutput, len(outputs), want)
	}

	predictions := make([]sentiment.Prediction, len(outputs))
	for i, labels := range outputs {
		if len(labels) == 0 {
			return nil, fmt.Errorf("%w: input %d has no labels", sentiment.ErrMalformedClassifierOutput, i)
		}

		best := labels[0]
		for _, l := range labels[1:] {
			if l.Score > best.Score {
				best = l
			}
		}

		label, ok := sentiment.ParseLabel(best.Label)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected label %q", sentiment.ErrMalformedClassifierOutput, best.Label)
		}
		predictions[i] = sentiment.Prediction{Label: label, Confidence: float64(best.Score)}
	}
	return predictions, nil
}

func (h *HugotClassifier) HealthCheck(ctx context.Context) bool {
	_, err := h.Classify(ctx, "ok")
	return err == nil
}

func (h *HugotClassifier) Close() error {
	if h.session == nil {
		return errors.New("hugot session already closed")
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}
