package models

import "time"

// Feedback is a persisted classification. Score and Confidence are stored
// rounded to three decimals.
type Feedback struct {
	ID         string    `json:"id" dynamodbav:"id"`
	Text       string    `json:"text" dynamodbav:"text"`
	Department string    `json:"department" dynamodbav:"department,omitempty"`
	Sentiment  string    `json:"sentiment" dynamodbav:"sentiment"`
	Score      float64   `json:"score" dynamodbav:"score"`
	Confidence float64   `json:"confidence" dynamodbav:"confidence"`
	Fallback   bool      `json:"fallback,omitempty" dynamodbav:"fallback,omitempty"`
	Timestamp  time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// FeedbackEvent is the message published on the submission topic.
type FeedbackEvent struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Department  string    `json:"department,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FeedbackAnalyzedEvent is published once a submission has been classified
// and stored.
type FeedbackAnalyzedEvent struct {
	EventID     string   `json:"event_id"`
	Feedback    Feedback `json:"feedback"`
	Emoji       string   `json:"emoji"`
	Description string   `json:"description"`
}
