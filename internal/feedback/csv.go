package feedback

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMissingFeedbackColumn = errors.New("CSV file must contain a 'feedback' column")

const (
	feedbackColumn   = "feedback"
	departmentColumn = "department"
)

// ParseCSV reads a header row followed by feedback rows. Feedback text is
// kept exactly as written. Rows with an empty feedback cell are kept; the
// analyzer degrades them to a fallback result.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingFeedbackColumn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	feedbackIdx, departmentIdx := -1, -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case feedbackColumn:
			feedbackIdx = i
		case departmentColumn:
			departmentIdx = i
		}
	}
	if feedbackIdx < 0 {
		return nil, ErrMissingFeedbackColumn
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		entry := Entry{Text: cell(record, feedbackIdx)}
		if departmentIdx >= 0 {
			entry.Department = strings.TrimSpace(cell(record, departmentIdx))
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func cell(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}
