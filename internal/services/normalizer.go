package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// QuoteNormalizer validates, deduplicates and persists raw collector
// payloads. The upstream collector may redeliver quotes after transient
// failures, so ingestion must be safe to replay: the dedup key is
// (game, book, market, side, observed_at) and the earliest-ingested payload
// wins on conflict.
type QuoteNormalizer struct {
	db     Querier
	cfg    config.IngestConfig
	logger *logrus.Logger
}

func NewQuoteNormalizer(db Querier, cfg config.IngestConfig, logger *logrus.Logger) *QuoteNormalizer {
	return &QuoteNormalizer{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Normalize validates a raw payload and builds the immutable Quote.
func (n *QuoteNormalizer) Normalize(raw *models.RawQuote) (*models.Quote, error) {
	if err := n.validate(raw); err != nil {
		return nil, err
	}

	status := raw.Status
	if status == "" {
		status = models.LineStatusNormal
	}

	var line *decimal.Decimal
	if raw.LineValue != nil {
		v := *raw.LineValue
		line = &v
	}

	return &models.Quote{
		ID:         uuid.New().String(),
		GameID:     raw.GameID,
		BookID:     raw.BookID,
		BookName:   raw.BookName,
		Market:     raw.Market,
		Side:       raw.Side,
		Odds:       raw.Odds,
		LineValue:  line,
		ObservedAt: raw.ObservedAt.UTC(),
		IngestedAt: time.Now().UTC(),
		Status:     status,
	}, nil
}

func (n *QuoteNormalizer) validate(raw *models.RawQuote) error {
	key := fmt.Sprintf("%s|%s|%s|%s", raw.GameID, raw.BookID, raw.Market, raw.Side)

	if raw.GameID == "" || raw.BookID == "" {
		return utils.NewKeyedValidationError(key, "missing game or book identifier")
	}
	if !raw.Market.SupportsSide(raw.Side) {
		return utils.NewKeyedValidationError(key, "side %q is not valid for market %q", raw.Side, raw.Market)
	}
	if raw.Market.RequiresLineValue() && raw.LineValue == nil {
		return utils.NewKeyedValidationError(key, "market %q requires a line value", raw.Market)
	}
	if !raw.Market.RequiresLineValue() && raw.LineValue != nil {
		return utils.NewKeyedValidationError(key, "moneyline quotes must not carry a line value")
	}
	if raw.ObservedAt.IsZero() {
		return utils.NewKeyedValidationError(key, "missing observation timestamp")
	}
	maxMag := n.cfg.MaxOddsMagnitude
	if maxMag <= 0 {
		maxMag = 10000
	}
	if raw.Odds == 0 || raw.Odds < -maxMag || raw.Odds > maxMag {
		// Corrupt feed data, not a crash condition: flag and continue.
		return utils.NewKeyedValidationError(key, "odds %d outside sane American range [-%d, %d]", raw.Odds, maxMag, maxMag)
	}
	switch raw.Status {
	case "", models.LineStatusOpener, models.LineStatusNormal, models.LineStatusSuspended:
	default:
		return utils.NewKeyedValidationError(key, "unknown line status %q", raw.Status)
	}
	return nil
}

// IngestBatch normalizes and persists a batch of raw quotes. Every record
// lands in exactly one summary counter; validation failures never abort the
// batch, persistence failures after retries do.
func (n *QuoteNormalizer) IngestBatch(ctx context.Context, raws []models.RawQuote) (*models.BatchSummary, []models.Quote, error) {
	summary := &models.BatchSummary{StartedAt: time.Now().UTC()}
	accepted := make([]models.Quote, 0, len(raws))

	for i := range raws {
		quote, err := n.Normalize(&raws[i])
		if err != nil {
			summary.Rejected++
			n.logger.WithError(err).Warn("Rejected quote")
			continue
		}

		inserted, err := n.persistQuote(ctx, quote)
		if err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, accepted, err
		}
		if inserted {
			summary.Accepted++
			accepted = append(accepted, *quote)
			continue
		}

		// The dedup key already exists. An identical payload is a harmless
		// redelivery; a differing payload is a data-quality conflict where
		// the earliest-ingested value stands.
		existing, err := n.fetchExisting(ctx, quote)
		if err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, accepted, utils.NewPersistenceError(quote.DedupKey(), 1, err)
		}
		if existing != nil && quote.PayloadEquals(existing) {
			summary.Duplicates++
		} else {
			summary.Conflicts++
			warn := utils.NewDataQualityWarning(quote.DedupKey(),
				"duplicate key with differing payload, keeping earliest-ingested value")
			n.logger.WithError(warn).WithFields(logrus.Fields{
				"odds_incoming": quote.Odds,
			}).Warn("Quote conflict")
		}
	}

	summary.FinishedAt = time.Now().UTC()
	n.logger.WithFields(logrus.Fields{
		"accepted":   summary.Accepted,
		"rejected":   summary.Rejected,
		"duplicates": summary.Duplicates,
		"conflicts":  summary.Conflicts,
	}).Info("Quote batch ingested")

	return summary, accepted, nil
}

func (n *QuoteNormalizer) persistQuote(ctx context.Context, q *models.Quote) (bool, error) {
	query := `
		INSERT INTO quotes (
			id, game_id, book_id, book_name, market, side, odds, line_value,
			observed_at, ingested_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (game_id, book_id, market, side, observed_at) DO NOTHING
	`

	inserted := false
	err := withRetry(ctx, n.logger, q.DedupKey(), n.cfg.WriteRetries, n.cfg.RetryBackoffDuration(), func() error {
		tag, err := n.db.Exec(ctx, query,
			q.ID, q.GameID, q.BookID, q.BookName, q.Market, q.Side, q.Odds,
			q.LineValue, q.ObservedAt, q.IngestedAt, q.Status,
		)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

func (n *QuoteNormalizer) fetchExisting(ctx context.Context, q *models.Quote) (*models.Quote, error) {
	query := `
		SELECT id, odds, line_value, status
		FROM quotes
		WHERE game_id = $1 AND book_id = $2 AND market = $3 AND side = $4 AND observed_at = $5
	`

	existing := models.Quote{
		GameID:     q.GameID,
		BookID:     q.BookID,
		Market:     q.Market,
		Side:       q.Side,
		ObservedAt: q.ObservedAt,
	}
	err := n.db.QueryRow(ctx, query, q.GameID, q.BookID, q.Market, q.Side, q.ObservedAt).
		Scan(&existing.ID, &existing.Odds, &existing.LineValue, &existing.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing quote: %w", err)
	}
	return &existing, nil
}
