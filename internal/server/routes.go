// Package server exposes the feedback service over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/moodmeter/internal/feedback"
)

type FeedbackService interface {
	Submit(ctx context.Context, text, department string) (feedback.Submission, error)
	SubmitBulk(ctx context.Context, entries []feedback.Entry) ([]feedback.Submission, error)
	Stats(ctx context.Context) (feedback.Stats, error)
}

type Handlers struct {
	service        FeedbackService
	healthy        *atomic.Bool
	maxUploadBytes int64
}

// SetupRouter wires the routes. A nil healthy flag reports the classifier
// as always healthy.
func SetupRouter(service FeedbackService, healthy *atomic.Bool, maxUploadBytes int64) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = maxUploadBytes

	h := &Handlers{
		service:        service,
		healthy:        healthy,
		maxUploadBytes: maxUploadBytes,
	}

	r.GET("/healthz", h.Health)
	r.POST("/analyze", h.Analyze)
	r.POST("/upload", h.Upload)
	r.GET("/stats", h.Stats)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "[Server] Request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
