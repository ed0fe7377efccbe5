package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/database"
	"github.com/sharpline/sharpline-go/internal/models"
)

func testPerformanceKey() models.PerformanceKey {
	return models.PerformanceKey{
		TimingBucket:   models.RecBucket0to2,
		Source:         "rlm",
		BookID:         "draftkings",
		Market:         models.MarketMoneyline,
		Strategy:       "fade_public",
		AnalysisPeriod: "all_time",
	}
}

func newTestRecommendationService(t *testing.T, db Querier) (*RecommendationService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	svc := NewRecommendationService(db, cache,
		config.RecommendationConfig{CacheTTL: "1h", MinWinRate: 52.4, WarnSampleMin: 20},
		config.PerformanceConfig{LowSample: 20, ModerateSample: 50, HighSample: 100},
		newTestLogger())
	return svc, mr
}

func aggregateRow(totalBets, wins, losses int, units, pl float64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "total_bets", "wins", "losses", "pushes", "total_units_wagered",
		"total_profit_loss", "avg_odds_at_rec", "avg_closing_odds", "computed_at",
	}).AddRow(
		"perf-1", totalBets, wins, losses, totalBets-wins-losses,
		decimal.NewFromFloat(units), decimal.NewFromFloat(pl),
		decimal.NewFromInt(-110), nil, time.Date(2026, 6, 16, 3, 0, 0, 0, time.UTC),
	)
}

func TestRecommendationFor_ProfitableSetup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc, _ := newTestRecommendationService(t, mock)

	// 60 wins of 100 at healthy ROI.
	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnRows(aggregateRow(100, 60, 40, 100, 14.6))

	rec, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	assert.Equal(t, "bet", rec.Recommendation)
	assert.Equal(t, models.ConfidenceVeryHigh, rec.Confidence)
	assert.Equal(t, 100, rec.SampleSize)
	assert.False(t, rec.SampleSizeWarning)
	assert.True(t, rec.ExpectedWinRate.Equal(decimal.NewFromInt(60)))
	assert.Empty(t, rec.RiskFactors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationFor_ServesFromCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc, mr := newTestRecommendationService(t, mock)

	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnRows(aggregateRow(100, 60, 40, 100, 14.6))

	first, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	// No second query expectation: the answer must come from the cache.
	second, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.SampleSize, second.SampleSize)

	// The cache expires with the configured freshness window.
	mr.FastForward(2 * time.Hour)
	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnRows(aggregateRow(100, 60, 40, 100, 14.6))
	_, err = svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationFor_LosingSetup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc, _ := newTestRecommendationService(t, mock)

	// 40% win rate and deeply negative ROI.
	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnRows(aggregateRow(50, 20, 30, 50, -12.8))

	rec, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	assert.Equal(t, "avoid", rec.Recommendation)
	assert.NotEmpty(t, rec.RiskFactors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationFor_SmallSampleWarns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc, _ := newTestRecommendationService(t, mock)

	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnRows(aggregateRow(8, 6, 2, 8, 4.2))

	rec, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	assert.Equal(t, "bet", rec.Recommendation)
	assert.Equal(t, models.ConfidenceLow, rec.Confidence)
	assert.True(t, rec.SampleSizeWarning)
	assert.NotEmpty(t, rec.RiskFactors)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationFor_NoHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc, _ := newTestRecommendationService(t, mock)

	mock.ExpectQuery("SELECT id, total_bets").WithArgs(anyArgs(6)...).WillReturnError(pgx.ErrNoRows)

	rec, err := svc.RecommendationFor(context.Background(), testPerformanceKey())
	require.NoError(t, err)

	assert.Equal(t, "avoid", rec.Recommendation)
	assert.Equal(t, models.ConfidenceLow, rec.Confidence)
	assert.True(t, rec.SampleSizeWarning)
	assert.Equal(t, 0, rec.SampleSize)

	assert.NoError(t, mock.ExpectationsWereMet())
}
