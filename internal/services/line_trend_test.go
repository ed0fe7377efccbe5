package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sharpline/sharpline-go/internal/models"
)

func TestLineDirectionOf(t *testing.T) {
	tests := []struct {
		name     string
		deltas   []float64
		period   int
		expected models.LineDirection
	}{
		{"empty series", nil, 3, models.DirectionStable},
		{"single upward tick", []float64{5}, 3, models.DirectionUp},
		{"single downward tick", []float64{-5}, 3, models.DirectionDown},
		{"steady climb", []float64{4, 6, 8}, 3, models.DirectionUp},
		{"steady drop", []float64{-4, -6, -8}, 3, models.DirectionDown},
		{"flat", []float64{0, 0, 0}, 3, models.DirectionStable},
		{"period longer than series", []float64{3, 5}, 10, models.DirectionUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LineDirectionOf(tt.deltas, tt.period))
		})
	}
}

func TestLineDirectionOf_SmoothsNoise(t *testing.T) {
	// The raw series ends on a down tick, but the smoothed trend is still up.
	deltas := []float64{10, 8, 12, -2}
	assert.Equal(t, models.DirectionUp, LineDirectionOf(deltas, 3))

	// Without smoothing the last tick decides.
	assert.Equal(t, models.DirectionDown, LineDirectionOf(deltas, 1))
}
