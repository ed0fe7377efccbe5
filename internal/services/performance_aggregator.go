package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// Locker serializes writers on a performance key. Two concurrent recomputes
// of the same key must not interleave a replace.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// PerformanceAggregator recomputes TimingBucketPerformance rows from
// resolved recommendation history. A recompute fully replaces the previous
// row for the key rather than merging into it, so reprocessing can never
// double-count or compound rounding drift.
type PerformanceAggregator struct {
	db     Querier
	locker Locker
	cfg    config.PerformanceConfig
	logger *logrus.Logger
}

func NewPerformanceAggregator(db Querier, locker Locker, cfg config.PerformanceConfig, logger *logrus.Logger) *PerformanceAggregator {
	return &PerformanceAggregator{
		db:     db,
		locker: locker,
		cfg:    cfg,
		logger: logger,
	}
}

// AggregateRows rolls resolved recommendations up by the full dimension
// tuple. Pure: the same rows always produce the same aggregates.
func (a *PerformanceAggregator) AggregateRows(rows []models.RecommendationHistory, period string) []models.TimingBucketPerformance {
	grouped := make(map[models.PerformanceKey][]models.RecommendationHistory)
	for _, rec := range rows {
		if !rec.Resolved() {
			continue
		}
		key := models.PerformanceKey{
			TimingBucket:   rec.TimingBucket(),
			Source:         rec.Source,
			BookID:         rec.BookID,
			Market:         rec.Market,
			Strategy:       rec.Strategy,
			AnalysisPeriod: period,
		}
		grouped[key] = append(grouped[key], rec)
	}

	keys := make([]models.PerformanceKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	now := time.Now().UTC()
	out := make([]models.TimingBucketPerformance, 0, len(keys))
	for _, key := range keys {
		recs := grouped[key]
		perf := models.TimingBucketPerformance{
			ID:         uuid.New().String(),
			Key:        key,
			ComputedAt: now,
		}

		var oddsSum, closingSum decimal.Decimal
		closingCount := 0
		for _, rec := range recs {
			perf.TotalBets++
			perf.TotalUnitsWagered = perf.TotalUnitsWagered.Add(rec.UnitsWagered)
			perf.TotalProfitLoss = perf.TotalProfitLoss.Add(*rec.ProfitLoss)
			oddsSum = oddsSum.Add(decimal.NewFromInt(int64(rec.OddsAtRec)))
			if rec.ClosingOdds != nil {
				closingSum = closingSum.Add(decimal.NewFromInt(int64(*rec.ClosingOdds)))
				closingCount++
			}

			switch *rec.Outcome {
			case models.OutcomeWin:
				perf.Wins++
			case models.OutcomeLoss:
				perf.Losses++
			case models.OutcomePush:
				perf.Pushes++
			}
		}

		perf.AvgOddsAtRec = oddsSum.Div(decimal.NewFromInt(int64(perf.TotalBets)))
		if closingCount > 0 {
			perf.AvgClosingOdds = closingSum.Div(decimal.NewFromInt(int64(closingCount)))
		}

		out = append(out, perf)
	}
	return out
}

// ConfidenceTier grades an aggregate using the configured sample
// thresholds.
func (a *PerformanceAggregator) ConfidenceTier(totalBets int) models.ConfidenceTier {
	return models.ConfidenceTierFor(totalBets,
		a.sample(a.cfg.LowSample, 20),
		a.sample(a.cfg.ModerateSample, 50),
		a.sample(a.cfg.HighSample, 100),
	)
}

// Recompute rebuilds every aggregate for the analysis period from the rows
// resolved inside the window. Returns the number of keys replaced.
func (a *PerformanceAggregator) Recompute(ctx context.Context, period string, since, until time.Time) (int, error) {
	rows, err := a.fetchResolved(ctx, since, until)
	if err != nil {
		return 0, err
	}

	aggregates := a.AggregateRows(rows, period)
	replaced := 0
	for i := range aggregates {
		if err := a.replaceAggregate(ctx, &aggregates[i]); err != nil {
			return replaced, err
		}
		replaced++
	}

	a.logger.WithFields(logrus.Fields{
		"period":   period,
		"rows":     len(rows),
		"replaced": replaced,
	}).Info("Timing-bucket performance recomputed")
	return replaced, nil
}

func (a *PerformanceAggregator) fetchResolved(ctx context.Context, since, until time.Time) ([]models.RecommendationHistory, error) {
	query := `
		SELECT id, game_id, recommended_at, hours_until_game, source, book_id,
			market, strategy, side, odds_at_rec, line_at_rec, closing_odds,
			units_wagered, outcome, profit_loss, resolved_at
		FROM recommendation_history
		WHERE outcome IS NOT NULL AND recommended_at >= $1 AND recommended_at < $2
		ORDER BY recommended_at ASC
	`

	rows, err := a.db.Query(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved recommendations: %w", err)
	}
	defer rows.Close()

	var out []models.RecommendationHistory
	for rows.Next() {
		var rec models.RecommendationHistory
		if err := rows.Scan(
			&rec.ID, &rec.GameID, &rec.RecommendedAt, &rec.HoursUntilGame,
			&rec.Source, &rec.BookID, &rec.Market, &rec.Strategy, &rec.Side,
			&rec.OddsAtRec, &rec.LineAtRec, &rec.ClosingOdds, &rec.UnitsWagered,
			&rec.Outcome, &rec.ProfitLoss, &rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resolved recommendation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *PerformanceAggregator) replaceAggregate(ctx context.Context, perf *models.TimingBucketPerformance) error {
	lockKey := "perf:lock:" + perf.Key.String()
	lockTTL := time.Duration(a.sample(a.cfg.LockTTLSeconds, 30)) * time.Second

	if a.locker != nil {
		acquired, err := a.locker.AcquireLock(ctx, lockKey, lockTTL)
		if err != nil {
			return utils.NewPersistenceError(perf.Key.String(), 1, err)
		}
		if !acquired {
			return utils.NewPersistenceError(perf.Key.String(), 1,
				fmt.Errorf("another writer holds the aggregate lock"))
		}
		defer func() {
			if err := a.locker.ReleaseLock(ctx, lockKey); err != nil {
				a.logger.WithError(err).WithField("key", lockKey).Warn("Failed to release aggregate lock")
			}
		}()
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return utils.NewPersistenceError(perf.Key.String(), 1, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleteQuery := `
		DELETE FROM timing_bucket_performance
		WHERE timing_bucket = $1 AND source = $2 AND book_id = $3
			AND market = $4 AND strategy = $5 AND analysis_period = $6
	`
	if _, err := tx.Exec(ctx, deleteQuery,
		perf.Key.TimingBucket, perf.Key.Source, perf.Key.BookID,
		perf.Key.Market, perf.Key.Strategy, perf.Key.AnalysisPeriod,
	); err != nil {
		return utils.NewPersistenceError(perf.Key.String(), 1, err)
	}

	insertQuery := `
		INSERT INTO timing_bucket_performance (
			id, timing_bucket, source, book_id, market, strategy,
			analysis_period, total_bets, wins, losses, pushes,
			total_units_wagered, total_profit_loss, win_rate, roi_percent,
			confidence_tier, avg_odds_at_rec, avg_closing_odds, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		perf.ID, perf.Key.TimingBucket, perf.Key.Source, perf.Key.BookID,
		perf.Key.Market, perf.Key.Strategy, perf.Key.AnalysisPeriod,
		perf.TotalBets, perf.Wins, perf.Losses, perf.Pushes,
		perf.TotalUnitsWagered, perf.TotalProfitLoss, perf.WinRate(), perf.ROI(),
		a.ConfidenceTier(perf.TotalBets), perf.AvgOddsAtRec, perf.AvgClosingOdds,
		perf.ComputedAt,
	); err != nil {
		return utils.NewPersistenceError(perf.Key.String(), 1, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return utils.NewPersistenceError(perf.Key.String(), 1, err)
	}
	return nil
}

func (a *PerformanceAggregator) sample(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}
