package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a line movement. Classification is mutually
// exclusive, first match wins: initial, line_change, then odds-move tiers by
// descending magnitude.
type MovementType string

const (
	MovementInitial     MovementType = "initial"
	MovementLineChange  MovementType = "line_change"
	MovementMajorOdds   MovementType = "major_odds_move"
	MovementSignificant MovementType = "significant_odds_move"
	MovementMinorOdds   MovementType = "minor_odds_move"
	MovementSmallOdds   MovementType = "small_odds_move"
	MovementNoChange    MovementType = "no_change"
)

// TimingBucket is the coarse pre-game window a movement was observed in.
type TimingBucket string

const (
	BucketEarlyWeek   TimingBucket = "early_week"   // >24h out
	BucketDayBefore   TimingBucket = "day_before"   // 6-24h
	BucketHoursBefore TimingBucket = "hours_before" // 1-6h
	BucketLatePregame TimingBucket = "late_pregame" // 15min-1h
	BucketVeryLate    TimingBucket = "very_late"    // 0-15min
)

// MovementRecord is the derived delta between a quote and its immediate
// predecessor in the same (game, book, market, side) series. Records are
// immutable and recomputable from the quote history.
type MovementRecord struct {
	ID           string     `json:"id" db:"id"`
	QuoteID      string     `json:"quote_id" db:"quote_id"`
	PrevQuoteID  string     `json:"prev_quote_id" db:"prev_quote_id"`
	GameID       string     `json:"game_id" db:"game_id"`
	BookID       string     `json:"book_id" db:"book_id"`
	Market       MarketType `json:"market" db:"market"`
	Side         Side       `json:"side" db:"side"`
	PrevOdds     int        `json:"prev_odds" db:"prev_odds"`
	CurrOdds     int        `json:"curr_odds" db:"curr_odds"`
	// CorrectedDelta uses sign-aware American-odds arithmetic; RawDelta is
	// the naive subtraction, kept for diagnostics only.
	CorrectedDelta int  `json:"corrected_delta" db:"corrected_delta"`
	RawDelta       int  `json:"raw_delta" db:"raw_delta"`
	// FilteredDelta is nil whenever the quality score marks the movement as
	// a probable false positive. Downstream consumers of genuine movement
	// read this field; diagnostic consumers read CorrectedDelta.
	FilteredDelta    *int             `json:"filtered_delta,omitempty" db:"filtered_delta"`
	LineValueDelta   *decimal.Decimal `json:"line_value_delta,omitempty" db:"line_value_delta"`
	LineValueChanged bool             `json:"line_value_changed" db:"line_value_changed"`
	ElapsedSeconds   int64            `json:"elapsed_seconds" db:"elapsed_seconds"`
	QualityScore     decimal.Decimal  `json:"quality_score" db:"quality_score"`
	MovementType     MovementType     `json:"movement_type" db:"movement_type"`
	TimingBucket     TimingBucket     `json:"timing_bucket" db:"timing_bucket"`
	ObservedAt       time.Time        `json:"observed_at" db:"observed_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// Elapsed returns the time between the previous and current observation.
func (m *MovementRecord) Elapsed() time.Duration {
	return time.Duration(m.ElapsedSeconds) * time.Second
}

// Direction returns the sign of the corrected delta: +1, -1, or 0.
func (m *MovementRecord) Direction() int {
	switch {
	case m.CorrectedDelta > 0:
		return 1
	case m.CorrectedDelta < 0:
		return -1
	default:
		return 0
	}
}
