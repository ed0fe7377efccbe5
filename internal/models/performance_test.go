package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecTimingBucketFor(t *testing.T) {
	tests := []struct {
		hours    float64
		expected RecTimingBucket
	}{
		{0.5, RecBucket0to2},
		{2, RecBucket0to2},
		{2.01, RecBucket2to6},
		{6, RecBucket2to6},
		{12, RecBucket6to24},
		{24, RecBucket6to24},
		{24.5, RecBucket24Plus},
		{72, RecBucket24Plus},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RecTimingBucketFor(decimal.NewFromFloat(tt.hours)),
			"hours until game: %v", tt.hours)
	}
}

func TestTimingBucketPerformance_Rates(t *testing.T) {
	perf := TimingBucketPerformance{
		TotalBets:         10,
		Wins:              6,
		Losses:            3,
		Pushes:            1,
		TotalUnitsWagered: decimal.NewFromInt(10),
		TotalProfitLoss:   decimal.NewFromFloat(2.5),
	}

	assert.True(t, perf.WinRate().Equal(decimal.NewFromInt(60)))
	assert.True(t, perf.ROI().Equal(decimal.NewFromInt(25)))
}

func TestTimingBucketPerformance_ZeroSample(t *testing.T) {
	var perf TimingBucketPerformance
	assert.True(t, perf.WinRate().IsZero())
	assert.True(t, perf.ROI().IsZero())
}

func TestConfidenceTierFor(t *testing.T) {
	assert.Equal(t, ConfidenceLow, ConfidenceTierFor(19, 20, 50, 100))
	assert.Equal(t, ConfidenceModerate, ConfidenceTierFor(20, 20, 50, 100))
	assert.Equal(t, ConfidenceModerate, ConfidenceTierFor(49, 20, 50, 100))
	assert.Equal(t, ConfidenceHigh, ConfidenceTierFor(50, 20, 50, 100))
	assert.Equal(t, ConfidenceHigh, ConfidenceTierFor(99, 20, 50, 100))
	assert.Equal(t, ConfidenceVeryHigh, ConfidenceTierFor(100, 20, 50, 100))
}

func TestPerformanceKey_String(t *testing.T) {
	key := PerformanceKey{
		TimingBucket:   RecBucket0to2,
		Source:         "rlm",
		BookID:         "dk",
		Market:         MarketMoneyline,
		Strategy:       "fade_public",
		AnalysisPeriod: "all_time",
	}
	assert.Equal(t, "0-2h|rlm|dk|moneyline|fade_public|all_time", key.String())
}

func TestGame_Completed(t *testing.T) {
	score := 5
	game := Game{Status: GameFinal, HomeScore: &score, AwayScore: &score}
	assert.True(t, game.Completed())

	game.Status = GameLive
	assert.False(t, game.Completed())

	game.Status = GameFinal
	game.AwayScore = nil
	assert.False(t, game.Completed())
}

func TestRecommendationHistory_Resolved(t *testing.T) {
	var rec RecommendationHistory
	assert.False(t, rec.Resolved())

	outcome := OutcomeWin
	rec.Outcome = &outcome
	assert.True(t, rec.Resolved())
}
