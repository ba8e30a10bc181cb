package models

type HFClassificationRequest struct {
	Inputs  []string                `json:"inputs"`
	Options HFClassificationOptions `json:"options"`
}

type HFClassificationOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type (
	// HFClassificationBatchResponse holds one list of label scores per input.
	HFClassificationBatchResponse [][]HFLabelScore
	HFLabelScore                  struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
)

type HFErrorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}
