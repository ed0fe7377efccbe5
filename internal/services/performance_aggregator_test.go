package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

func resolvedRec(id string, hoursUntil float64, outcome models.Outcome, pl float64, odds int) models.RecommendationHistory {
	o := outcome
	plDec := decimal.NewFromFloat(pl)
	resolvedAt := time.Date(2026, 6, 16, 3, 0, 0, 0, time.UTC)
	return models.RecommendationHistory{
		ID:             id,
		GameID:         "game-1",
		RecommendedAt:  time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		HoursUntilGame: decimal.NewFromFloat(hoursUntil),
		Source:         "rlm",
		BookID:         "draftkings",
		Market:         models.MarketMoneyline,
		Strategy:       "fade_public",
		Side:           models.SideHome,
		OddsAtRec:      odds,
		UnitsWagered:   decimal.NewFromInt(1),
		Outcome:        &o,
		ProfitLoss:     &plDec,
		ResolvedAt:     &resolvedAt,
	}
}

func TestAggregateRows_ComputesTotals(t *testing.T) {
	agg := NewPerformanceAggregator(nil, nil, config.PerformanceConfig{}, newTestLogger())

	rows := []models.RecommendationHistory{
		resolvedRec("r1", 1.5, models.OutcomeWin, 0.91, -110),
		resolvedRec("r2", 1.0, models.OutcomeWin, 0.91, -110),
		resolvedRec("r3", 1.8, models.OutcomeLoss, -1, -110),
		resolvedRec("r4", 0.5, models.OutcomePush, 0, -110),
	}

	aggregates := agg.AggregateRows(rows, "all_time")
	require.Len(t, aggregates, 1)

	perf := aggregates[0]
	assert.Equal(t, models.RecBucket0to2, perf.Key.TimingBucket)
	assert.Equal(t, "all_time", perf.Key.AnalysisPeriod)
	assert.Equal(t, 4, perf.TotalBets)
	assert.Equal(t, 2, perf.Wins)
	assert.Equal(t, 1, perf.Losses)
	assert.Equal(t, 1, perf.Pushes)
	assert.True(t, perf.TotalUnitsWagered.Equal(decimal.NewFromInt(4)))
	assert.True(t, perf.TotalProfitLoss.Equal(decimal.NewFromFloat(0.82)))

	// Win rate counts pushes in the denominator: 2/4.
	assert.True(t, perf.WinRate().Equal(decimal.NewFromInt(50)))
	// ROI: 0.82 / 4 units.
	assert.Equal(t, "20.5", perf.ROI().StringFixed(1))
	assert.True(t, perf.AvgOddsAtRec.Equal(decimal.NewFromInt(-110)))
}

func TestAggregateRows_SplitsByTimingBucket(t *testing.T) {
	agg := NewPerformanceAggregator(nil, nil, config.PerformanceConfig{}, newTestLogger())

	rows := []models.RecommendationHistory{
		resolvedRec("r1", 1.5, models.OutcomeWin, 0.91, -110),
		resolvedRec("r2", 5.0, models.OutcomeWin, 0.91, -110),
		resolvedRec("r3", 12.0, models.OutcomeLoss, -1, -110),
		resolvedRec("r4", 48.0, models.OutcomeWin, 1.2, 120),
	}

	aggregates := agg.AggregateRows(rows, "all_time")
	require.Len(t, aggregates, 4)

	buckets := make([]models.RecTimingBucket, 0, len(aggregates))
	for _, a := range aggregates {
		buckets = append(buckets, a.Key.TimingBucket)
		assert.Equal(t, 1, a.TotalBets)
	}
	assert.ElementsMatch(t, []models.RecTimingBucket{
		models.RecBucket0to2, models.RecBucket2to6, models.RecBucket6to24, models.RecBucket24Plus,
	}, buckets)
}

func TestAggregateRows_SkipsUnresolved(t *testing.T) {
	agg := NewPerformanceAggregator(nil, nil, config.PerformanceConfig{}, newTestLogger())

	pending := resolvedRec("r1", 1.5, models.OutcomeWin, 0.91, -110)
	pending.Outcome = nil
	pending.ProfitLoss = nil

	assert.Empty(t, agg.AggregateRows([]models.RecommendationHistory{pending}, "all_time"))
}

func TestAggregateRows_Deterministic(t *testing.T) {
	agg := NewPerformanceAggregator(nil, nil, config.PerformanceConfig{}, newTestLogger())

	rows := []models.RecommendationHistory{
		resolvedRec("r1", 1.5, models.OutcomeWin, 0.91, -110),
		resolvedRec("r2", 5.0, models.OutcomeLoss, -1, -110),
		resolvedRec("r3", 12.0, models.OutcomeWin, 0.91, -110),
	}

	first := agg.AggregateRows(rows, "all_time")
	second := agg.AggregateRows([]models.RecommendationHistory{rows[2], rows[0], rows[1]}, "all_time")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].TotalBets, second[i].TotalBets)
	}
}

func TestRecompute_ReplacesAggregateRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	agg := NewPerformanceAggregator(mock, nil, config.PerformanceConfig{}, newTestLogger())

	rec := resolvedRec("r1", 1.5, models.OutcomeWin, 0.91, -110)
	mock.ExpectQuery("SELECT id, game_id, recommended_at").
		WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "game_id", "recommended_at", "hours_until_game", "source", "book_id",
			"market", "strategy", "side", "odds_at_rec", "line_at_rec", "closing_odds",
			"units_wagered", "outcome", "profit_loss", "resolved_at",
		}).AddRow(
			rec.ID, rec.GameID, rec.RecommendedAt, rec.HoursUntilGame, rec.Source,
			rec.BookID, rec.Market, rec.Strategy, rec.Side, rec.OddsAtRec,
			nil, nil, rec.UnitsWagered, rec.Outcome, rec.ProfitLoss, rec.ResolvedAt,
		))

	// Replace, never merge: the old row goes before the new one lands.
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM timing_bucket_performance").
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO timing_bucket_performance").
		WithArgs(anyArgs(19)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	replaced, err := agg.Recompute(context.Background(), "all_time", since, until)
	require.NoError(t, err)
	assert.Equal(t, 1, replaced)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfidenceTier(t *testing.T) {
	agg := NewPerformanceAggregator(nil, nil, config.PerformanceConfig{}, newTestLogger())

	assert.Equal(t, models.ConfidenceLow, agg.ConfidenceTier(0))
	assert.Equal(t, models.ConfidenceLow, agg.ConfidenceTier(19))
	assert.Equal(t, models.ConfidenceModerate, agg.ConfidenceTier(20))
	assert.Equal(t, models.ConfidenceHigh, agg.ConfidenceTier(50))
	assert.Equal(t, models.ConfidenceVeryHigh, agg.ConfidenceTier(100))
	assert.Equal(t, models.ConfidenceVeryHigh, agg.ConfidenceTier(500))
}
