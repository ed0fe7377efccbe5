package services

import (
	"time"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

// PreGameTimingClassifier buckets observations by distance from game start.
// Anything observed at or after the start, or beyond the lookback horizon,
// is discarded outright: post-start data pollutes sharp-timing analysis and
// week-old data is stale.
type PreGameTimingClassifier struct {
	cfg config.TimingConfig
}

func NewPreGameTimingClassifier(cfg config.TimingConfig) *PreGameTimingClassifier {
	return &PreGameTimingClassifier{cfg: cfg}
}

// Classify returns the timing bucket for an observation and whether the
// observation is usable pre-game data at all.
func (c *PreGameTimingClassifier) Classify(observedAt, startTime time.Time) (models.TimingBucket, bool) {
	until := startTime.Sub(observedAt)
	if until <= 0 {
		return "", false
	}
	if until > time.Duration(c.lookbackDays())*24*time.Hour {
		return "", false
	}

	minutes := until.Minutes()
	switch {
	case minutes <= float64(c.boundary(c.cfg.VeryLateMinutes, 15)):
		return models.BucketVeryLate, true
	case minutes <= float64(c.boundary(c.cfg.LatePregameMinutes, 60)):
		return models.BucketLatePregame, true
	case minutes <= float64(c.boundary(c.cfg.HoursBeforeMinutes, 360)):
		return models.BucketHoursBefore, true
	case minutes <= float64(c.boundary(c.cfg.DayBeforeMinutes, 1440)):
		return models.BucketDayBefore, true
	default:
		return models.BucketEarlyWeek, true
	}
}

// MinutesUntilStart is positive before the game and negative after.
func (c *PreGameTimingClassifier) MinutesUntilStart(observedAt, startTime time.Time) float64 {
	return startTime.Sub(observedAt).Minutes()
}

func (c *PreGameTimingClassifier) lookbackDays() int {
	return c.boundary(c.cfg.LookbackDays, 7)
}

func (c *PreGameTimingClassifier) boundary(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}
