package models

// OpenAISentimentVerdict is the JSON object the LLM classifier must answer with.
type OpenAISentimentVerdict struct {
	Label      string  `json:"label" jsonschema:"required,enum=POSITIVE,enum=NEGATIVE,description=Overall polarity of the feedback"`
	Confidence float64 `json:"confidence" jsonschema:"required,minimum=0,maximum=1,description=Certainty of the label between 0 and 1"`
}
