package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// keywordClassifier says NEGATIVE for texts containing "bad", fails for
// texts containing "boom" and says POSITIVE otherwise.
type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string) (sentiment.Prediction, error) {
	switch {
	case strings.Contains(text, "boom"):
		return sentiment.Prediction{}, errors.New("model crashed")
	case strings.Contains(text, "bad"):
		return sentiment.Prediction{Label: sentiment.LabelNegative, Confidence: 0.95}, nil
	default:
		return sentiment.Prediction{Label: sentiment.LabelPositive, Confidence: 0.8}, nil
	}
}

type memoryRepository struct {
	mu      sync.Mutex
	items   []models.Feedback
	saveErr error
	listErr error
}

func (r *memoryRepository) Save(_ context.Context, f models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items = append(r.items, f)
	return nil
}

func (r *memoryRepository) BatchSave(_ context.Context, items []models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items = append(r.items, items...)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]models.Feedback(nil), r.items...), nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *memoryRepository) *Service {
	s := NewService(sentiment.NewAnalyzer(keywordClassifier{}), repo)
	s.now = func() time.Time { return fixedNow }
	n := 0
	s.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return s
}

func TestService_Submit(t *testing.T) {
	repo := &memoryRepository{}
	s := newTestService(repo)

	sub, err := s.Submit(context.Background(), "a bad week", "Engineering")
	require.NoError(t, err)

	assert.Equal(t, models.Feedback{
		ID:         "id-1",
		Text:       "a bad week",
		Department: "Engineering",
		Sentiment:  "VERY_NEGATIVE",
		Score:      -0.9,
		Confidence: 0.95,
		Timestamp:  fixedNow,
	}, sub.Feedback)
	assert.Equal(t, sentiment.CategoryVeryNegative, sub.Result.Category())
	assert.Equal(t, []models.Feedback{sub.Feedback}, repo.items)
}

func TestService_SubmitEmptyText(t *testing.T) {
	repo := &memoryRepository{}
	_, err := newTestService(repo).Submit(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, repo.items)
}

func TestService_SubmitAnalysisFailure(t *testing.T) {
	repo := &memoryRepository{}
	_, err := newTestService(repo).Submit(context.Background(), "boom", "")
	assert.ErrorIs(t, err, sentiment.ErrClassifierUnavailable)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Empty(t, repo.items)
}

func TestService_SubmitStorageFailure(t *testing.T) {
	repo := &memoryRepository{saveErr: errors.New("table missing")}
	_, err := newTestService(repo).Submit(context.Background(), "great", "")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "table missing")
}

func TestService_SubmitBulk(t *testing.T) {
	repo := &memoryRepository{}
	s := newTestService(repo)

	subs, err := s.SubmitBulk(context.Background(), []Entry{
		{Text: "great team", Department: "Sales"},
		{Text: "boom"},
		{Text: "bad tooling", Department: "IT"},
		{ID: "evt-42", Text: "fine"},
	})
	require.NoError(t, err)
	require.Len(t, subs, 4)

	assert.Equal(t, "great team", subs[0].Feedback.Text)
	assert.Equal(t, "Sales", subs[0].Feedback.Department)
	assert.Equal(t, "POSITIVE", subs[0].Feedback.Sentiment)

	assert.True(t, subs[1].Feedback.Fallback)
	assert.Equal(t, "NEUTRAL", subs[1].Feedback.Sentiment)
	assert.Equal(t, sentiment.FallbackResult("boom"), subs[1].Result)

	assert.Equal(t, "VERY_NEGATIVE", subs[2].Feedback.Sentiment)
	assert.Equal(t, "evt-42", subs[3].Feedback.ID)

	assert.Len(t, repo.items, 4)
}

func TestService_SubmitBulkEmpty(t *testing.T) {
	subs, err := newTestService(&memoryRepository{}).SubmitBulk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestService_SubmitBulkStorageFailure(t *testing.T) {
	repo := &memoryRepository{saveErr: errors.New("throttled")}
	_, err := newTestService(repo).SubmitBulk(context.Background(), []Entry{{Text: "ok"}})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestService_Stats(t *testing.T) {
	repo := &memoryRepository{}
	s := newTestService(repo)

	_, err := s.SubmitBulk(context.Background(), []Entry{{Text: "great"}, {Text: "bad"}, {Text: "nice"}})
	require.NoError(t, err)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	// (0.6 - 0.9 + 0.6) / 3
	assert.Equal(t, 0.1, stats.AverageScore)
	assert.Equal(t, map[string]int{"POSITIVE": 2, "VERY_NEGATIVE": 1}, stats.SentimentDistribution)
}

func TestService_StatsStorageFailure(t *testing.T) {
	_, err := newTestService(&memoryRepository{listErr: errors.New("scan failed")}).Stats(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.AverageScore)
	assert.Empty(t, stats.SentimentDistribution)
	assert.NotNil(t, stats.SentimentDistribution)
}

func TestComputeStats_Rounding(t *testing.T) {
	stats := ComputeStats([]models.Feedback{
		{Sentiment: "POSITIVE", Score: 0.5},
		{Sentiment: "NEUTRAL", Score: 0.0},
		{Sentiment: "NEUTRAL", Score: 0.0},
	})
	assert.Equal(t, 0.167, stats.AverageScore)
	assert.Equal(t, map[string]int{"POSITIVE": 1, "NEUTRAL": 2}, stats.SentimentDistribution)
}
