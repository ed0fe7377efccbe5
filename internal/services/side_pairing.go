package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// PairMatch is a complementary-side quote found closest in time to the
// reference quote, with the observation gap between them.
type PairMatch struct {
	Quote     models.Quote  `json:"quote"`
	TimeDelta time.Duration `json:"time_delta"`
}

// SidePairingMatcher finds the complementary quote (over for under, home
// for away) closest in observation time within the same game, book and
// market. Both sides of a market moving together is what lets a sharp
// signal be confirmed rather than inferred from one side.
type SidePairingMatcher struct {
	db     Querier
	cfg    config.PairingConfig
	logger *logrus.Logger
}

func NewSidePairingMatcher(db Querier, cfg config.PairingConfig, logger *logrus.Logger) *SidePairingMatcher {
	return &SidePairingMatcher{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// FindPair returns the closest complementary quote within the configured
// window, or (nil, nil) when no synchronized pair exists. An unmatched side
// is a data-quality note, not an error.
func (m *SidePairingMatcher) FindPair(ctx context.Context, q *models.Quote) (*PairMatch, error) {
	window := m.cfg.Window()
	if window <= 0 {
		window = 5 * time.Minute
	}

	// Exact timestamp ties break toward the earlier observation.
	query := `
		SELECT id, game_id, book_id, book_name, market, side, odds, line_value,
			observed_at, ingested_at, status
		FROM quotes
		WHERE game_id = $1 AND book_id = $2 AND market = $3 AND side = $4
			AND observed_at BETWEEN $5 AND $6
		ORDER BY ABS(EXTRACT(EPOCH FROM (observed_at - $7::timestamptz))) ASC,
			observed_at ASC
		LIMIT 1
	`

	var match models.Quote
	err := m.db.QueryRow(ctx, query,
		q.GameID, q.BookID, q.Market, q.Side.Complement(),
		q.ObservedAt.Add(-window), q.ObservedAt.Add(window), q.ObservedAt,
	).Scan(
		&match.ID, &match.GameID, &match.BookID, &match.BookName, &match.Market,
		&match.Side, &match.Odds, &match.LineValue, &match.ObservedAt,
		&match.IngestedAt, &match.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		warn := utils.NewDataQualityWarning(q.SeriesKey(), "no complementary quote within %s", window)
		m.logger.WithError(warn).Debug("Unmatched side pair")
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewPersistenceError(q.SeriesKey(), 1, err)
	}

	delta := match.ObservedAt.Sub(q.ObservedAt)
	if delta < 0 {
		delta = -delta
	}
	return &PairMatch{Quote: match, TimeDelta: delta}, nil
}
