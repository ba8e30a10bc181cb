package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"golang.org/x/oauth2"
)

// HuggingFaceClient classifies text through a hosted text-classification
// model (the Inference API or a compatible endpoint).
type HuggingFaceClient struct {
	Client   *http.Client
	endpoint string

	maxRetries     int
	initialBackoff time.Duration
}

type HuggingFaceOption func(*HuggingFaceClient)

// WithRetryPolicy overrides the retry count and first backoff.
func WithRetryPolicy(retries int, backoff time.Duration) HuggingFaceOption {
	return func(h *HuggingFaceClient) {
		h.maxRetries = retries
		h.initialBackoff = backoff
	}
}

// NewHuggingFaceClient builds a client for endpoint. A non-empty token is
// sent as a bearer token on every request.
func NewHuggingFaceClient(endpoint, token string, timeout time.Duration, opts ...HuggingFaceOption) *HuggingFaceClient {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = timeout
	}

	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.String("endpoint", endpoint),
		slog.Duration("timeout", timeout),
		slog.Bool("authenticated", token != ""))

	h := &HuggingFaceClient{
		Client:         httpClient,
		endpoint:       endpoint,
		maxRetries:     MAX_RETRIES,
		initialBackoff: INITIAL_BACKOFF,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HuggingFaceClient) Classify(ctx context.Context, text string) (sentiment.Prediction, error) {
	predictions, err := h.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return sentiment.Prediction{}, err
	}
	return predictions[0], nil
}

// ClassifyBatch sends every text in one request and picks the top scoring
// label for each input.
func (h *HuggingFaceClient) ClassifyBatch(ctx context.Context, texts []string) ([]sentiment.Prediction, error) {
	for _, text := range texts {
		if text == "" {
			// the API rejects the whole request on a single empty input
			return nil, sentiment.ErrBlankText
		}
	}

	var result models.HFClassificationBatchResponse
	start := time.Now()

	err := h.postJSON(ctx, models.HFClassificationRequest{
		Inputs:  texts,
		Options: models.HFClassificationOptions{WaitForModel: true},
	}, &result)
	if err != nil {
		slog.Error("[HuggingFaceClient] Sentiment Analysis request failed",
			slog.Int("batch_size", len(texts)),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	if len(result) != len(texts) {
		return nil, fmt.Errorf("%w: got %d results for %d inputs",
			sentiment.ErrMalformedClassifierOutput, len(result), len(texts))
	}

	predictions := make([]sentiment.Prediction, len(result))
	for i, scores := range result {
		p, err := topPrediction(scores)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		predictions[i] = p
	}

	slog.Debug("[HuggingFaceClient] Sentiment Analysis request successful",
		slog.Int("batch_size", len(texts)),
		slog.Duration("elapsed", time.Since(start)))
	return predictions, nil
}

func topPrediction(scores []models.HFLabelScore) (sentiment.Prediction, error) {
	if len(scores) == 0 {
		return sentiment.Prediction{}, fmt.Errorf("%w: empty label list", sentiment.ErrMalformedClassifierOutput)
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	label, ok := sentiment.ParseLabel(best.Label)
	if !ok {
		return sentiment.Prediction{}, fmt.Errorf("%w: unexpected label %q", sentiment.ErrMalformedClassifierOutput, best.Label)
	}
	return sentiment.Prediction{Label: label, Confidence: best.Score}, nil
}

// HealthCheck reports whether the endpoint answers a tiny classification.
func (h *HuggingFaceClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := h.Classify(ctx, "ok")
	return err == nil
}

func (h *HuggingFaceClient) DoWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := h.initialBackoff

	for attempt := 0; attempt < h.maxRetries; attempt++ {
		req, buildErr := build()
		if buildErr != nil {
			return nil, buildErr
		}

		resp, err = h.Client.Do(req)
		// 503 is what the API answers while the model is loading
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		slog.Warn("[HuggingFaceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
		if err == nil {
			err = errors.New("server error")
		}

		if attempt == h.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, MAX_BACKOFF)
	}

	return nil, err
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (h *HuggingFaceClient) postJSON(ctx context.Context, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	resp, err := h.DoWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		return req, nil
	})
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed request after retries",
			slog.String("endpoint", h.endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: request failed after retries: %w", sentiment.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", sentiment.ErrClassifierUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.HFErrorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		slog.Error("[HuggingFaceClient] Endpoint rejected request",
			slog.Int("status", resp.StatusCode),
			slog.String("error", apiErr.Error))
		return fmt.Errorf("%w: status %d: %s", sentiment.ErrClassifierUnavailable, resp.StatusCode, apiErr.Error)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", h.endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))

		return fmt.Errorf("%w: failed to unmarshal response: %w", sentiment.ErrMalformedClassifierOutput, err)
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
