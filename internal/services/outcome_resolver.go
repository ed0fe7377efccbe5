package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// OutcomeResolver joins recommendation history against final game outcomes.
// It runs against completed games only and resolves each row exactly once;
// re-running over the same games is a no-op.
type OutcomeResolver struct {
	db     Querier
	logger *logrus.Logger
}

func NewOutcomeResolver(db Querier, logger *logrus.Logger) *OutcomeResolver {
	return &OutcomeResolver{db: db, logger: logger}
}

// ResolveOutcome computes win/loss/push and realized profit/loss for one
// recommendation against a completed game.
func (r *OutcomeResolver) ResolveOutcome(rec *models.RecommendationHistory, game *models.Game) (models.Outcome, decimal.Decimal, error) {
	if !game.Completed() {
		return "", decimal.Zero, utils.NewInvariantViolation("game %s is not completed", game.ID)
	}
	if rec.GameID != game.ID {
		return "", decimal.Zero, utils.NewInvariantViolation(
			"recommendation %s does not belong to game %s", rec.ID, game.ID)
	}

	outcome, err := r.grade(rec, game)
	if err != nil {
		return "", decimal.Zero, err
	}

	var pl decimal.Decimal
	switch outcome {
	case models.OutcomeWin:
		pl = rec.UnitsWagered.Mul(ProfitMultiplier(rec.OddsAtRec))
	case models.OutcomeLoss:
		pl = rec.UnitsWagered.Neg()
	case models.OutcomePush:
		pl = decimal.Zero
	}
	return outcome, pl, nil
}

func (r *OutcomeResolver) grade(rec *models.RecommendationHistory, game *models.Game) (models.Outcome, error) {
	home := decimal.NewFromInt(int64(*game.HomeScore))
	away := decimal.NewFromInt(int64(*game.AwayScore))

	switch rec.Market {
	case models.MarketMoneyline:
		if home.Equal(away) {
			return models.OutcomePush, nil
		}
		homeWon := home.GreaterThan(away)
		if (rec.Side == models.SideHome) == homeWon {
			return models.OutcomeWin, nil
		}
		return models.OutcomeLoss, nil

	case models.MarketTotal:
		if rec.LineAtRec == nil {
			return "", utils.NewInvariantViolation("total recommendation %s has no line value", rec.ID)
		}
		total := home.Add(away)
		if total.Equal(*rec.LineAtRec) {
			return models.OutcomePush, nil
		}
		wentOver := total.GreaterThan(*rec.LineAtRec)
		if (rec.Side == models.SideOver) == wentOver {
			return models.OutcomeWin, nil
		}
		return models.OutcomeLoss, nil

	case models.MarketSpread:
		if rec.LineAtRec == nil {
			return "", utils.NewInvariantViolation("spread recommendation %s has no line value", rec.ID)
		}
		// The line is quoted for the recommended side: that side covers
		// when its score plus the spread beats the opponent.
		var adjusted, opponent decimal.Decimal
		if rec.Side == models.SideHome {
			adjusted, opponent = home.Add(*rec.LineAtRec), away
		} else {
			adjusted, opponent = away.Add(*rec.LineAtRec), home
		}
		if adjusted.Equal(opponent) {
			return models.OutcomePush, nil
		}
		if adjusted.GreaterThan(opponent) {
			return models.OutcomeWin, nil
		}
		return models.OutcomeLoss, nil

	default:
		return "", utils.NewInvariantViolation("unknown market %q on recommendation %s", rec.Market, rec.ID)
	}
}

// ResolveCompleted resolves every unresolved recommendation whose game has
// finished. Returns the number of rows resolved.
func (r *OutcomeResolver) ResolveCompleted(ctx context.Context) (int, error) {
	pending, games, err := r.fetchPending(ctx)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range pending {
		rec := &pending[i]
		game := games[rec.GameID]

		outcome, pl, err := r.ResolveOutcome(rec, game)
		if err != nil {
			// Invariant violations abort the offending unit only.
			r.logger.WithError(err).WithField("recommendation_id", rec.ID).Error("Failed to resolve recommendation")
			continue
		}

		updated, err := r.markResolved(ctx, rec.ID, outcome, pl)
		if err != nil {
			return resolved, err
		}
		if updated {
			resolved++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"pending":  len(pending),
		"resolved": resolved,
	}).Info("Recommendation outcomes resolved")
	return resolved, nil
}

func (r *OutcomeResolver) fetchPending(ctx context.Context) ([]models.RecommendationHistory, map[string]*models.Game, error) {
	query := `
		SELECT rh.id, rh.game_id, rh.recommended_at, rh.hours_until_game,
			rh.source, rh.book_id, rh.market, rh.strategy, rh.side,
			rh.odds_at_rec, rh.line_at_rec, rh.closing_odds, rh.units_wagered,
			g.game_date, g.start_time, g.home_team, g.away_team, g.status,
			g.home_score, g.away_score
		FROM recommendation_history rh
		JOIN games g ON g.id = rh.game_id
		WHERE rh.outcome IS NULL
			AND g.status = 'final'
			AND g.home_score IS NOT NULL
			AND g.away_score IS NOT NULL
		ORDER BY rh.recommended_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query pending recommendations: %w", err)
	}
	defer rows.Close()

	var pending []models.RecommendationHistory
	games := make(map[string]*models.Game)
	for rows.Next() {
		var rec models.RecommendationHistory
		var game models.Game
		if err := rows.Scan(
			&rec.ID, &rec.GameID, &rec.RecommendedAt, &rec.HoursUntilGame,
			&rec.Source, &rec.BookID, &rec.Market, &rec.Strategy, &rec.Side,
			&rec.OddsAtRec, &rec.LineAtRec, &rec.ClosingOdds, &rec.UnitsWagered,
			&game.GameDate, &game.StartTime, &game.HomeTeam, &game.AwayTeam,
			&game.Status, &game.HomeScore, &game.AwayScore,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan pending recommendation: %w", err)
		}
		game.ID = rec.GameID
		pending = append(pending, rec)
		games[rec.GameID] = &game
	}
	return pending, games, rows.Err()
}

func (r *OutcomeResolver) markResolved(ctx context.Context, id string, outcome models.Outcome, pl decimal.Decimal) (bool, error) {
	// The outcome IS NULL guard keeps resolution exactly-once even when two
	// resolver runs overlap.
	query := `
		UPDATE recommendation_history
		SET outcome = $2, profit_loss = $3, resolved_at = $4
		WHERE id = $1 AND outcome IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, outcome, pl, time.Now().UTC())
	if err != nil {
		return false, utils.NewPersistenceError(id, 1, err)
	}
	return tag.RowsAffected() == 1, nil
}
