package feedback

import (
	"github.com/spacesedan/moodmeter/internal/models"
	"github.com/spacesedan/moodmeter/internal/sentiment"
)

type Stats struct {
	Total                 int            `json:"total"`
	AverageScore          float64        `json:"average_score"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
}

func ComputeStats(items []models.Feedback) Stats {
	stats := Stats{
		Total:                 len(items),
		SentimentDistribution: make(map[string]int),
	}
	if len(items) == 0 {
		return stats
	}

	var sum float64
	for _, f := range items {
		sum += f.Score
		stats.SentimentDistribution[f.Sentiment]++
	}
	stats.AverageScore = sentiment.Round3(sum / float64(len(items)))
	return stats
}
