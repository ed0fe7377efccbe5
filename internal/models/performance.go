package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GameStatus is the lifecycle state reported by the game-context provider.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameLive      GameStatus = "live"
	GameFinal     GameStatus = "final"
)

// Game is the context the engine needs about a fixture: start time for the
// timing classifier, final scores for the outcome resolver.
type Game struct {
	ID        string     `json:"id" db:"id"`
	GameDate  time.Time  `json:"game_date" db:"game_date"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	HomeTeam  string     `json:"home_team" db:"home_team"`
	AwayTeam  string     `json:"away_team" db:"away_team"`
	Status    GameStatus `json:"status" db:"status"`
	HomeScore *int       `json:"home_score,omitempty" db:"home_score"`
	AwayScore *int       `json:"away_score,omitempty" db:"away_score"`
}

// Completed reports whether final scores are available.
func (g *Game) Completed() bool {
	return g.Status == GameFinal && g.HomeScore != nil && g.AwayScore != nil
}

// BettingSplit is a public betting-percentage observation for one market
// side, supplied by the splits provider. Optional input: RLM detection is
// skipped when absent.
type BettingSplit struct {
	GameID        string          `json:"game_id" db:"game_id"`
	Market        MarketType      `json:"market" db:"market"`
	Side          Side            `json:"side" db:"side"`
	BetPercent    decimal.Decimal `json:"bet_percent" db:"bet_percent"`
	HandlePercent decimal.Decimal `json:"handle_percent" db:"handle_percent"`
	RecordedAt    time.Time       `json:"recorded_at" db:"recorded_at"`
}

// Outcome is the resolved result of a recommendation.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// RecTimingBucket segments recommendations by hours until game start.
type RecTimingBucket string

const (
	RecBucket0to2   RecTimingBucket = "0-2h"
	RecBucket2to6   RecTimingBucket = "2-6h"
	RecBucket6to24  RecTimingBucket = "6-24h"
	RecBucket24Plus RecTimingBucket = "24h+"
)

// RecTimingBucketFor derives the bucket deterministically from hours until
// game start at recommendation time.
func RecTimingBucketFor(hoursUntilGame decimal.Decimal) RecTimingBucket {
	switch {
	case hoursUntilGame.LessThanOrEqual(decimal.NewFromInt(2)):
		return RecBucket0to2
	case hoursUntilGame.LessThanOrEqual(decimal.NewFromInt(6)):
		return RecBucket2to6
	case hoursUntilGame.LessThanOrEqual(decimal.NewFromInt(24)):
		return RecBucket6to24
	default:
		return RecBucket24Plus
	}
}

// RecommendationHistory is one issued recommendation. It is mutated exactly
// once, by the outcome resolver, when the underlying game completes.
type RecommendationHistory struct {
	ID              string           `json:"id" db:"id"`
	GameID          string           `json:"game_id" db:"game_id"`
	RecommendedAt   time.Time        `json:"recommended_at" db:"recommended_at"`
	HoursUntilGame  decimal.Decimal  `json:"hours_until_game" db:"hours_until_game"`
	Source          string           `json:"source" db:"source"`
	BookID          string           `json:"book_id" db:"book_id"`
	Market          MarketType       `json:"market" db:"market"`
	Strategy        string           `json:"strategy" db:"strategy"`
	Side            Side             `json:"side" db:"side"`
	OddsAtRec       int              `json:"odds_at_rec" db:"odds_at_rec"`
	LineAtRec       *decimal.Decimal `json:"line_at_rec,omitempty" db:"line_at_rec"`
	ClosingOdds     *int             `json:"closing_odds,omitempty" db:"closing_odds"`
	UnitsWagered    decimal.Decimal  `json:"units_wagered" db:"units_wagered"`
	Outcome         *Outcome         `json:"outcome,omitempty" db:"outcome"`
	ProfitLoss      *decimal.Decimal `json:"profit_loss,omitempty" db:"profit_loss"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// TimingBucket returns the recommendation's timing bucket.
func (r *RecommendationHistory) TimingBucket() RecTimingBucket {
	return RecTimingBucketFor(r.HoursUntilGame)
}

// Resolved reports whether the outcome resolver has processed this row.
func (r *RecommendationHistory) Resolved() bool {
	return r.Outcome != nil
}

// ConfidenceTier grades an aggregate purely by sample size.
type ConfidenceTier string

const (
	ConfidenceLow      ConfidenceTier = "LOW"
	ConfidenceModerate ConfidenceTier = "MODERATE"
	ConfidenceHigh     ConfidenceTier = "HIGH"
	ConfidenceVeryHigh ConfidenceTier = "VERY_HIGH"
)

// PerformanceKey is the full dimension tuple a performance aggregate is
// keyed by. Aggregates are replaced per key, never merged in place.
type PerformanceKey struct {
	TimingBucket   RecTimingBucket `json:"timing_bucket" db:"timing_bucket"`
	Source         string          `json:"source" db:"source"`
	BookID         string          `json:"book_id" db:"book_id"`
	Market         MarketType      `json:"market" db:"market"`
	Strategy       string          `json:"strategy" db:"strategy"`
	AnalysisPeriod string          `json:"analysis_period" db:"analysis_period"`
}

// String renders the key as a stable pipe-separated tuple, used for cache
// keys and advisory locks.
func (k PerformanceKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		k.TimingBucket, k.Source, k.BookID, k.Market, k.Strategy, k.AnalysisPeriod)
}

// TimingBucketPerformance aggregates recommendation outcomes for one key.
type TimingBucketPerformance struct {
	ID                string          `json:"id" db:"id"`
	Key               PerformanceKey  `json:"key"`
	TotalBets         int             `json:"total_bets" db:"total_bets"`
	Wins              int             `json:"wins" db:"wins"`
	Losses            int             `json:"losses" db:"losses"`
	Pushes            int             `json:"pushes" db:"pushes"`
	TotalUnitsWagered decimal.Decimal `json:"total_units_wagered" db:"total_units_wagered"`
	TotalProfitLoss   decimal.Decimal `json:"total_profit_loss" db:"total_profit_loss"`
	AvgOddsAtRec      decimal.Decimal `json:"avg_odds_at_rec" db:"avg_odds_at_rec"`
	AvgClosingOdds    decimal.Decimal `json:"avg_closing_odds" db:"avg_closing_odds"`
	ComputedAt        time.Time       `json:"computed_at" db:"computed_at"`
}

// WinRate is wins / total bets as a percentage.
func (p *TimingBucketPerformance) WinRate() decimal.Decimal {
	if p.TotalBets == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.Wins)).
		Div(decimal.NewFromInt(int64(p.TotalBets))).
		Mul(decimal.NewFromInt(100))
}

// ROI is total profit/loss over total units wagered as a percentage.
func (p *TimingBucketPerformance) ROI() decimal.Decimal {
	if p.TotalUnitsWagered.IsZero() {
		return decimal.Zero
	}
	return p.TotalProfitLoss.Div(p.TotalUnitsWagered).Mul(decimal.NewFromInt(100))
}

// ConfidenceTierFor grades sample size against the configured thresholds
// (defaults 20/50/100). Tier depends only on sample size, never on outcome
// quality.
func ConfidenceTierFor(totalBets, low, moderate, high int) ConfidenceTier {
	switch {
	case totalBets >= high:
		return ConfidenceVeryHigh
	case totalBets >= moderate:
		return ConfidenceHigh
	case totalBets >= low:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

// Recommendation is the cached answer served to downstream consumers for a
// performance key.
type Recommendation struct {
	Key               PerformanceKey  `json:"key"`
	Recommendation    string          `json:"recommendation"` // "bet", "caution", "avoid"
	Confidence        ConfidenceTier  `json:"confidence"`
	ExpectedWinRate   decimal.Decimal `json:"expected_win_rate"`
	ExpectedROI       decimal.Decimal `json:"expected_roi"`
	RiskFactors       []string        `json:"risk_factors"`
	SampleSize        int             `json:"sample_size"`
	SampleSizeWarning bool            `json:"sample_size_warning"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
