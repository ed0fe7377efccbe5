package services

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/sharpline/sharpline-go/internal/models"
)

// LineDirectionOf classifies the direction of a movement-delta series after
// SMA smoothing, so a single noisy tick does not flip the read on which way
// the line is going.
func LineDirectionOf(deltas []float64, period int) models.LineDirection {
	if len(deltas) == 0 {
		return models.DirectionStable
	}
	if period < 1 {
		period = 1
	}
	if period > len(deltas) {
		period = len(deltas)
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(deltas)))
	if len(smoothed) == 0 {
		return models.DirectionStable
	}

	last := smoothed[len(smoothed)-1]
	switch {
	case last > 0:
		return models.DirectionUp
	case last < 0:
		return models.DirectionDown
	default:
		return models.DirectionStable
	}
}
