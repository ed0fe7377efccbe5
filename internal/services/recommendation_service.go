package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

// Cache is the subset of the redis client the recommendation service needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// RecommendationService answers "should we bet this setup" questions from
// the timing-bucket performance aggregates, with a redis cache in front so
// repeated lookups inside one freshness window hit the same answer.
type RecommendationService struct {
	db     Querier
	cache  Cache
	cfg    config.RecommendationConfig
	perf   config.PerformanceConfig
	logger *logrus.Logger
}

func NewRecommendationService(db Querier, cache Cache, cfg config.RecommendationConfig, perf config.PerformanceConfig, logger *logrus.Logger) *RecommendationService {
	return &RecommendationService{
		db:     db,
		cache:  cache,
		cfg:    cfg,
		perf:   perf,
		logger: logger,
	}
}

// RecommendationFor returns the cached recommendation for the key, building
// and caching one from the stored aggregate on a miss. A key with no
// aggregate yet resolves to "avoid" with a sample-size warning.
func (s *RecommendationService) RecommendationFor(ctx context.Context, key models.PerformanceKey) (*models.Recommendation, error) {
	cacheKey := "rec:" + key.String()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var rec models.Recommendation
			if err := json.Unmarshal([]byte(cached), &rec); err == nil {
				return &rec, nil
			}
			s.logger.WithField("cache_key", cacheKey).Warn("Discarding unreadable cached recommendation")
		}
	}

	perf, err := s.fetchAggregate(ctx, key)
	if err != nil {
		return nil, err
	}

	rec := s.build(key, perf)

	if s.cache != nil {
		payload, err := json.Marshal(rec)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTLDuration()); err != nil {
				s.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Failed to cache recommendation")
			}
		}
	}
	return rec, nil
}

// build derives the answer from one aggregate. Nil perf means no history
// exists for the key at all.
func (s *RecommendationService) build(key models.PerformanceKey, perf *models.TimingBucketPerformance) *models.Recommendation {
	rec := &models.Recommendation{
		Key:         key,
		GeneratedAt: time.Now().UTC(),
		RiskFactors: []string{},
	}

	warnMin := s.cfg.WarnSampleMin
	if warnMin <= 0 {
		warnMin = 20
	}

	if perf == nil {
		rec.Recommendation = "avoid"
		rec.Confidence = models.ConfidenceLow
		rec.SampleSizeWarning = true
		rec.RiskFactors = append(rec.RiskFactors, "no historical performance for this setup")
		return rec
	}

	rec.SampleSize = perf.TotalBets
	rec.ExpectedWinRate = perf.WinRate()
	rec.ExpectedROI = perf.ROI()
	rec.Confidence = models.ConfidenceTierFor(perf.TotalBets,
		s.perf.LowSample, s.perf.ModerateSample, s.perf.HighSample)

	minWinRate := decimal.NewFromFloat(s.cfg.MinWinRate)
	minROI := decimal.NewFromFloat(s.cfg.MinROI)

	profitable := rec.ExpectedWinRate.GreaterThanOrEqual(minWinRate) &&
		rec.ExpectedROI.GreaterThan(minROI)
	breakeven := rec.ExpectedROI.GreaterThanOrEqual(minROI.Neg())

	switch {
	case profitable:
		rec.Recommendation = "bet"
	case breakeven:
		rec.Recommendation = "caution"
	default:
		rec.Recommendation = "avoid"
	}

	if perf.TotalBets < warnMin {
		rec.SampleSizeWarning = true
		rec.RiskFactors = append(rec.RiskFactors,
			fmt.Sprintf("sample size %d below minimum %d", perf.TotalBets, warnMin))
	}
	if rec.ExpectedWinRate.LessThan(minWinRate) {
		rec.RiskFactors = append(rec.RiskFactors,
			fmt.Sprintf("win rate %s%% below breakeven %s%%",
				rec.ExpectedWinRate.StringFixed(1), minWinRate.StringFixed(1)))
	}
	if rec.ExpectedROI.IsNegative() {
		rec.RiskFactors = append(rec.RiskFactors,
			fmt.Sprintf("negative ROI %s%%", rec.ExpectedROI.StringFixed(1)))
	}
	return rec
}

func (s *RecommendationService) fetchAggregate(ctx context.Context, key models.PerformanceKey) (*models.TimingBucketPerformance, error) {
	query := `
		SELECT id, total_bets, wins, losses, pushes, total_units_wagered,
			total_profit_loss, avg_odds_at_rec, avg_closing_odds, computed_at
		FROM timing_bucket_performance
		WHERE timing_bucket = $1 AND source = $2 AND book_id = $3
			AND market = $4 AND strategy = $5 AND analysis_period = $6
	`

	var perf models.TimingBucketPerformance
	perf.Key = key
	var avgClosing *decimal.Decimal
	err := s.db.QueryRow(ctx, query,
		key.TimingBucket, key.Source, key.BookID, key.Market, key.Strategy, key.AnalysisPeriod,
	).Scan(
		&perf.ID, &perf.TotalBets, &perf.Wins, &perf.Losses, &perf.Pushes,
		&perf.TotalUnitsWagered, &perf.TotalProfitLoss, &perf.AvgOddsAtRec,
		&avgClosing, &perf.ComputedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query performance aggregate: %w", err)
	}
	if avgClosing != nil {
		perf.AvgClosingOdds = *avgClosing
	}
	return &perf, nil
}
