package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/moodmeter/internal/feedback"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

type analyzeRequest struct {
	Text       string `json:"text"`
	Department string `json:"department"`
}

type analyzeResponse struct {
	ID          string             `json:"id"`
	Text        string             `json:"text"`
	Category    sentiment.Category `json:"category"`
	Emoji       string             `json:"emoji"`
	Description string             `json:"description"`
	Score       float64            `json:"score"`
	Confidence  float64            `json:"confidence"`
	Department  string             `json:"department"`
}

type uploadResponse struct {
	Message string             `json:"message"`
	Results []sentiment.Result `json:"results"`
}

func (h *Handlers) Health(c *gin.Context) {
	if h.healthy != nil && !h.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "classifier unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	sub, err := h.service.Submit(c.Request.Context(), req.Text, req.Department)
	if err != nil {
		status, msg := errorStatus(err)
		slog.Warn("[Server] Analyze failed", slog.Int("status", status), slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{
		ID:          sub.Feedback.ID,
		Text:        sub.Feedback.Text,
		Category:    sub.Result.Category(),
		Emoji:       sub.Result.Emoji(),
		Description: sub.Result.Description(),
		Score:       sentiment.Round3(sub.Result.Score()),
		Confidence:  sentiment.Round3(sub.Result.Confidence()),
		Department:  sub.Feedback.Department,
	})
}

func (h *Handlers) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if header.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read uploaded file"})
		return
	}
	defer file.Close()

	entries, err := feedback.ParseCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error processing CSV file: %s", err)})
		return
	}

	subs, err := h.service.SubmitBulk(c.Request.Context(), entries)
	if err != nil {
		status, msg := errorStatus(err)
		slog.Error("[Server] Upload failed", slog.Int("status", status), slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	results := make([]sentiment.Result, len(subs))
	for i, s := range subs {
		results[i] = s.Result
	}
	c.JSON(http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("Successfully processed %d feedback entries", len(results)),
		Results: results,
	})
}

func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		slog.Error("[Server] Stats failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, feedback.ErrEmptyText):
		return http.StatusBadRequest, "No text provided"
	case errors.Is(err, feedback.ErrStorage):
		return http.StatusInternalServerError, "Failed to store feedback"
	case errors.Is(err, sentiment.ErrClassifierUnavailable),
		errors.Is(err, sentiment.ErrMalformedClassifierOutput),
		errors.Is(err, sentiment.ErrBlankText):
		return http.StatusBadGateway, "Failed to analyze sentiment"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
