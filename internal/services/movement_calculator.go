package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// MovementCalculator derives MovementRecords from the committed quote log.
// The predecessor for a quote is read from storage rather than held as live
// in-memory state, so processing is replayable and parallelizable across
// series; recomputing over the same quote set is idempotent.
type MovementCalculator struct {
	db         Querier
	cfg        config.MovementConfig
	ingest     config.IngestConfig
	classifier *PreGameTimingClassifier
	logger     *logrus.Logger
}

func NewMovementCalculator(db Querier, cfg config.MovementConfig, ingest config.IngestConfig, classifier *PreGameTimingClassifier, logger *logrus.Logger) *MovementCalculator {
	return &MovementCalculator{
		db:         db,
		cfg:        cfg,
		ingest:     ingest,
		classifier: classifier,
		logger:     logger,
	}
}

// ProcessQuote computes and persists the movement record for a newly
// normalized quote. It returns (nil, nil) when the quote is an opener with
// no predecessor, or when the observation falls outside the usable pre-game
// window.
func (c *MovementCalculator) ProcessQuote(ctx context.Context, q *models.Quote, game *models.Game) (*models.MovementRecord, error) {
	bucket, ok := c.classifier.Classify(q.ObservedAt, game.StartTime)
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"series":      q.SeriesKey(),
			"observed_at": q.ObservedAt,
		}).Debug("Quote outside pre-game window, no movement recorded")
		return nil, nil
	}

	prev, err := c.fetchPredecessor(ctx, q)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		// Opener: the quote is the series baseline and produces no record.
		return nil, nil
	}

	record, err := c.ComputeMovement(prev, q)
	if err != nil {
		return nil, err
	}
	record.TimingBucket = bucket

	if err := c.persistMovement(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ComputeMovement builds the movement record for a predecessor/current pair
// in the same series. A mismatched pair is a programming error, never
// silently skipped.
func (c *MovementCalculator) ComputeMovement(prev, curr *models.Quote) (*models.MovementRecord, error) {
	if !curr.SameSeries(prev) {
		return nil, utils.NewInvariantViolation(
			"predecessor %s does not match series %s", prev.SeriesKey(), curr.SeriesKey())
	}
	if curr.ObservedAt.Before(prev.ObservedAt) {
		return nil, utils.NewInvariantViolation(
			"predecessor observed after current quote in series %s", curr.SeriesKey())
	}

	corrected := CorrectedOddsDelta(prev.Odds, curr.Odds)
	raw := NaiveOddsDelta(prev.Odds, curr.Odds)

	lineDelta, lineChanged := c.lineValueDelta(prev, curr)

	score := c.qualityScore(absInt(corrected), lineChanged)

	var filtered *int
	if !c.isFalsePositive(score) {
		v := corrected
		filtered = &v
	}

	record := &models.MovementRecord{
		ID:               uuid.New().String(),
		QuoteID:          curr.ID,
		PrevQuoteID:      prev.ID,
		GameID:           curr.GameID,
		BookID:           curr.BookID,
		Market:           curr.Market,
		Side:             curr.Side,
		PrevOdds:         prev.Odds,
		CurrOdds:         curr.Odds,
		CorrectedDelta:   corrected,
		RawDelta:         raw,
		FilteredDelta:    filtered,
		LineValueDelta:   lineDelta,
		LineValueChanged: lineChanged,
		ElapsedSeconds:   int64(curr.ObservedAt.Sub(prev.ObservedAt) / time.Second),
		QualityScore:     score,
		ObservedAt:       curr.ObservedAt,
		CreatedAt:        time.Now().UTC(),
	}
	record.MovementType = c.classify(record)

	return record, nil
}

func (c *MovementCalculator) lineValueDelta(prev, curr *models.Quote) (*decimal.Decimal, bool) {
	if prev.LineValue == nil || curr.LineValue == nil {
		return nil, false
	}
	delta := curr.LineValue.Sub(*prev.LineValue)
	minChange := decimal.NewFromFloat(c.floatThreshold(c.cfg.LineChangeMin, 0.5))
	changed := curr.Market.RequiresLineValue() && delta.Abs().GreaterThanOrEqual(minChange)
	return &delta, changed
}

// qualityScore grades how trustworthy a movement is as a genuine price move
// rather than an artifact of repricing a new point value. A headline odds
// jump that coincides with a line-value change is mostly the market pricing
// the new number, not sharp money.
func (c *MovementCalculator) qualityScore(magnitude int, lineChanged bool) decimal.Decimal {
	major := c.intThreshold(c.cfg.MajorMoveThreshold, 20)
	minor := c.intThreshold(c.cfg.MinorMoveThreshold, 5)
	suspect := c.intThreshold(c.cfg.SuspectDeltaThreshold, 50)
	badData := c.intThreshold(c.cfg.BadDataDeltaThreshold, 100)

	if lineChanged {
		switch {
		case magnitude <= major:
			return decimal.NewFromFloat(0.7)
		case magnitude <= suspect:
			return decimal.NewFromFloat(0.3)
		default:
			// Probable false positive: the delta is an artifact of the
			// repriced point value.
			return decimal.NewFromFloat(0.1)
		}
	}

	switch {
	case magnitude > badData:
		// Suspiciously large without a line change, likely bad data.
		return decimal.NewFromFloat(0.2)
	case magnitude >= major:
		return decimal.NewFromFloat(1.0)
	case magnitude >= minor:
		return decimal.NewFromFloat(0.9)
	case magnitude > 0:
		return decimal.NewFromFloat(0.8)
	default:
		return decimal.NewFromFloat(1.0)
	}
}

func (c *MovementCalculator) isFalsePositive(score decimal.Decimal) bool {
	max := c.floatThreshold(c.cfg.FalsePositiveScoreMax, 0.1)
	return score.LessThanOrEqual(decimal.NewFromFloat(max))
}

// classify applies the mutually exclusive movement taxonomy, first match
// wins. The initial type is assigned by the caller for openers; every
// record produced here has a predecessor.
func (c *MovementCalculator) classify(m *models.MovementRecord) models.MovementType {
	if m.LineValueChanged {
		return models.MovementLineChange
	}

	effective := m.CorrectedDelta
	if m.FilteredDelta != nil {
		effective = *m.FilteredDelta
	}
	magnitude := absInt(effective)

	switch {
	case magnitude >= c.intThreshold(c.cfg.MajorMoveThreshold, 20):
		return models.MovementMajorOdds
	case magnitude >= c.intThreshold(c.cfg.SignificantMoveThreshold, 10):
		return models.MovementSignificant
	case magnitude >= c.intThreshold(c.cfg.MinorMoveThreshold, 5):
		return models.MovementMinorOdds
	case magnitude > 0:
		return models.MovementSmallOdds
	default:
		return models.MovementNoChange
	}
}

func (c *MovementCalculator) fetchPredecessor(ctx context.Context, q *models.Quote) (*models.Quote, error) {
	query := `
		SELECT id, game_id, book_id, book_name, market, side, odds, line_value,
			observed_at, ingested_at, status
		FROM quotes
		WHERE game_id = $1 AND book_id = $2 AND market = $3 AND side = $4
			AND observed_at < $5
		ORDER BY observed_at DESC
		LIMIT 1
	`

	var prev models.Quote
	err := c.db.QueryRow(ctx, query, q.GameID, q.BookID, q.Market, q.Side, q.ObservedAt).Scan(
		&prev.ID, &prev.GameID, &prev.BookID, &prev.BookName, &prev.Market, &prev.Side,
		&prev.Odds, &prev.LineValue, &prev.ObservedAt, &prev.IngestedAt, &prev.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewPersistenceError(q.SeriesKey(), 1, err)
	}
	return &prev, nil
}

func (c *MovementCalculator) persistMovement(ctx context.Context, m *models.MovementRecord) error {
	query := `
		INSERT INTO movement_records (
			id, quote_id, prev_quote_id, game_id, book_id, market, side,
			prev_odds, curr_odds, corrected_delta, raw_delta, filtered_delta,
			line_value_delta, line_value_changed, elapsed_seconds,
			quality_score, movement_type, timing_bucket, observed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (quote_id) DO NOTHING
	`

	return withRetry(ctx, c.logger, m.QuoteID, c.ingest.WriteRetries, c.ingest.RetryBackoffDuration(), func() error {
		_, err := c.db.Exec(ctx, query,
			m.ID, m.QuoteID, m.PrevQuoteID, m.GameID, m.BookID, m.Market, m.Side,
			m.PrevOdds, m.CurrOdds, m.CorrectedDelta, m.RawDelta, m.FilteredDelta,
			m.LineValueDelta, m.LineValueChanged, m.ElapsedSeconds,
			m.QualityScore, m.MovementType, m.TimingBucket, m.ObservedAt, m.CreatedAt,
		)
		return err
	})
}

func (c *MovementCalculator) intThreshold(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return fallback
}

func (c *MovementCalculator) floatThreshold(configured, fallback float64) float64 {
	if configured > 0 {
		return configured
	}
	return fallback
}
