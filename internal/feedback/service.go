// Package feedback stores classified feedback and reports on it.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

var (
	ErrEmptyText = errors.New("feedback text is required")
	ErrStorage   = errors.New("feedback storage failed")
)

type Analyzer interface {
	Analyze(ctx context.Context, text string) (sentiment.Result, error)
	AnalyzeBulk(ctx context.Context, texts []string) []sentiment.Result
}

type Repository interface {
	Save(ctx context.Context, f models.Feedback) error
	BatchSave(ctx context.Context, items []models.Feedback) error
	List(ctx context.Context) ([]models.Feedback, error)
}

// Entry is one piece of feedback waiting to be classified.
type Entry struct {
	ID         string
	Text       string
	Department string
}

type Submission struct {
	Feedback models.Feedback
	Result   sentiment.Result
}

type Service struct {
	analyzer Analyzer
	repo     Repository

	now   func() time.Time
	newID func() string
}

func NewService(analyzer Analyzer, repo Repository) *Service {
	return &Service{
		analyzer: analyzer,
		repo:     repo,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Submit classifies a single text and stores it. Classification errors are
// returned unchanged so callers can tell them apart from ErrStorage.
func (s *Service) Submit(ctx context.Context, text, department string) (Submission, error) {
	if strings.TrimSpace(text) == "" {
		return Submission{}, ErrEmptyText
	}

	result, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return Submission{}, err
	}

	record := s.record(Entry{Text: text, Department: department}, result)
	if err := s.repo.Save(ctx, record); err != nil {
		slog.Error("[FeedbackService] Failed to store feedback",
			slog.String("id", record.ID),
			slog.String("error", err.Error()))
		return Submission{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	slog.Info("[FeedbackService] Feedback stored",
		slog.String("id", record.ID),
		slog.String("sentiment", record.Sentiment))
	return Submission{Feedback: record, Result: result}, nil
}

// SubmitBulk classifies every entry and stores all of them, fallback rows
// included. Submissions come back in entry order.
func (s *Service) SubmitBulk(ctx context.Context, entries []Entry) ([]Submission, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	results := s.analyzer.AnalyzeBulk(ctx, texts)

	submissions := make([]Submission, len(entries))
	records := make([]models.Feedback, len(entries))
	for i, e := range entries {
		records[i] = s.record(e, results[i])
		submissions[i] = Submission{Feedback: records[i], Result: results[i]}
	}

	if err := s.repo.BatchSave(ctx, records); err != nil {
		slog.Error("[FeedbackService] Failed to store feedback batch",
			slog.Int("batch_size", len(records)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	slog.Info("[FeedbackService] Feedback batch stored", slog.Int("batch_size", len(records)))
	return submissions, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return ComputeStats(items), nil
}

func (s *Service) record(e Entry, r sentiment.Result) models.Feedback {
	id := e.ID
	if id == "" {
		id = s.newID()
	}
	return models.Feedback{
		ID:         id,
		Text:       e.Text,
		Department: e.Department,
		Sentiment:  r.Category().String(),
		Score:      sentiment.Round3(r.Score()),
		Confidence: sentiment.Round3(r.Confidence()),
		Fallback:   r.Fallback(),
		Timestamp:  s.now(),
	}
}
