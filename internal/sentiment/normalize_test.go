package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func confidenceGrid() []float64 {
	grid := make([]float64, 0, 101)
	for i := 0; i <= 100; i++ {
		grid = append(grid, float64(i)/100)
	}
	return grid
}

func TestNormalize_Anchors(t *testing.T) {
	tests := []struct {
		label      Label
		confidence float64
		want       float64
	}{
		{LabelPositive, 1.0, 1.0},
		{LabelPositive, 0.5, 0.0},
		{LabelPositive, 0.0, -1.0},
		{LabelPositive, 0.95, 0.9},
		{LabelNegative, 1.0, -1.0},
		{LabelNegative, 0.5, 0.0},
		{LabelNegative, 0.9, -0.8},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Normalize(tt.label, tt.confidence), 1e-9, "%s %.2f", tt.label, tt.confidence)
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	grid := confidenceGrid()
	for i := 1; i < len(grid); i++ {
		assert.GreaterOrEqual(t, Normalize(LabelPositive, grid[i]), Normalize(LabelPositive, grid[i-1]))
		assert.LessOrEqual(t, Normalize(LabelNegative, grid[i]), Normalize(LabelNegative, grid[i-1]))
	}
}

func TestNormalize_RangeAndSymmetry(t *testing.T) {
	for _, c := range confidenceGrid() {
		pos := Normalize(LabelPositive, c)
		neg := Normalize(LabelNegative, c)

		assert.GreaterOrEqual(t, pos, -1.0)
		assert.LessOrEqual(t, pos, 1.0)
		assert.GreaterOrEqual(t, neg, -1.0)
		assert.LessOrEqual(t, neg, 1.0)
		assert.InDelta(t, pos, -neg, 1e-12)
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
		ok   bool
	}{
		{"POSITIVE", LabelPositive, true},
		{" positive ", LabelPositive, true},
		{"LABEL_1", LabelPositive, true},
		{"negative", LabelNegative, true},
		{"LABEL_0", LabelNegative, true},
		{"MIXED", Label("MIXED"), false},
	}

	for _, tt := range tests {
		got, ok := ParseLabel(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
