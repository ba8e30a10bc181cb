package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, text string) (sentiment.Prediction, error) {
	switch {
	case strings.Contains(text, "down"):
		return sentiment.Prediction{}, errors.New("backend down")
	case strings.Contains(text, "awful"):
		return sentiment.Prediction{Label: sentiment.LabelNegative, Confidence: 0.95}, nil
	default:
		return sentiment.Prediction{Label: sentiment.LabelPositive, Confidence: 0.8}, nil
	}
}

type memoryRepository struct {
	mu    sync.Mutex
	items []models.Feedback
	err   error
}

func (r *memoryRepository) Save(_ context.Context, f models.Feedback) error {
	return r.BatchSave(context.Background(), []models.Feedback{f})
}

func (r *memoryRepository) BatchSave(_ context.Context, items []models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, items...)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.Feedback(nil), r.items...), nil
}

func newTestRouter(repo *memoryRepository, healthy *atomic.Bool) *gin.Engine {
	service := feedback.NewService(sentiment.NewAnalyzer(stubClassifier{}), repo)
	return SetupRouter(service, healthy, 1<<20)
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doUpload(t *testing.T, r http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAnalyze(t *testing.T) {
	repo := &memoryRepository{}
	r := newTestRouter(repo, nil)

	w := doJSON(t, r, http.MethodPost, "/analyze", `{"text":"awful parking","department":"Facilities"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "awful parking", body["text"])
	assert.Equal(t, "VERY_NEGATIVE", body["category"])
	assert.Equal(t, "😢", body["emoji"])
	assert.Equal(t, "Very Negative", body["description"])
	assert.Equal(t, -0.9, body["score"])
	assert.Equal(t, 0.95, body["confidence"])
	assert.Equal(t, "Facilities", body["department"])
	assert.NotEmpty(t, body["id"])

	require.Len(t, repo.items, 1)
	assert.Equal(t, "VERY_NEGATIVE", repo.items[0].Sentiment)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		repo   *memoryRepository
		status int
	}{
		{"missing text", `{"department":"HR"}`, &memoryRepository{}, http.StatusBadRequest},
		{"blank text", `{"text":"   "}`, &memoryRepository{}, http.StatusBadRequest},
		{"bad json", `{"text":`, &memoryRepository{}, http.StatusBadRequest},
		{"classifier down", `{"text":"server down again"}`, &memoryRepository{}, http.StatusBadGateway},
		{"storage down", `{"text":"fine"}`, &memoryRepository{err: errors.New("no table")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, newTestRouter(tt.repo, nil), http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestUpload(t *testing.T) {
	repo := &memoryRepository{}
	r := newTestRouter(repo, nil)

	w := doUpload(t, r, "survey.csv", "feedback,department\ngreat team,Sales\nawful chairs,HR\nsite down again,IT\n")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string `json:"message"`
		Results []struct {
			Text     string `json:"text"`
			Category string `json:"category"`
			Fallback bool   `json:"fallback"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Successfully processed 3 feedback entries", body.Message)
	require.Len(t, body.Results, 3)
	assert.Equal(t, "POSITIVE", body.Results[0].Category)
	assert.Equal(t, "VERY_NEGATIVE", body.Results[1].Category)
	assert.Equal(t, "NEUTRAL", body.Results[2].Category)
	assert.True(t, body.Results[2].Fallback)

	require.Len(t, repo.items, 3)
	assert.Equal(t, "HR", repo.items[1].Department)
}

func TestUpload_Errors(t *testing.T) {
	r := newTestRouter(&memoryRepository{}, nil)

	w := doUpload(t, r, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", decode(t, w)["error"])

	w = doUpload(t, r, "survey.xlsx", "feedback\nhi\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File must be a CSV", decode(t, w)["error"])

	w = doUpload(t, r, "survey.csv", "comment\nhi\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "feedback")
}

func TestUpload_StorageFailure(t *testing.T) {
	r := newTestRouter(&memoryRepository{err: errors.New("throttled")}, nil)

	w := doUpload(t, r, "survey.csv", "feedback\nhi\n")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStats(t *testing.T) {
	repo := &memoryRepository{}
	r := newTestRouter(repo, nil)

	w := doJSON(t, r, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":0,"average_score":0,"sentiment_distribution":{}}`, w.Body.String())

	doJSON(t, r, http.MethodPost, "/analyze", `{"text":"great"}`)
	doJSON(t, r, http.MethodPost, "/analyze", `{"text":"awful"}`)

	w = doJSON(t, r, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2,"average_score":-0.15,"sentiment_distribution":{"POSITIVE":1,"VERY_NEGATIVE":1}}`, w.Body.String())
}

func TestStats_StorageFailure(t *testing.T) {
	w := doJSON(t, newTestRouter(&memoryRepository{err: errors.New("scan failed")}, nil), http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	healthy := &atomic.Bool{}
	r := newTestRouter(&memoryRepository{}, healthy)

	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	healthy.Store(true)
	w = doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doJSON(t, newTestRouter(&memoryRepository{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
