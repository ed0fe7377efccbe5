package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityType tags the detector that produced an opportunity.
type OpportunityType string

const (
	OpportunityRLM       OpportunityType = "reverse_line_movement"
	OpportunitySteam     OpportunityType = "steam_move"
	OpportunityArbitrage OpportunityType = "arbitrage"
)

// SignalStrength tiers a detected signal.
type SignalStrength string

const (
	StrengthWeak     SignalStrength = "weak"
	StrengthModerate SignalStrength = "moderate"
	StrengthStrong   SignalStrength = "strong"
)

// LineDirection is the direction a line moved over a detection window.
type LineDirection string

const (
	DirectionUp     LineDirection = "up"
	DirectionDown   LineDirection = "down"
	DirectionStable LineDirection = "stable"
)

// RLMOpportunity is a reverse-line-movement signal: the line moved against
// the side the public is betting.
type RLMOpportunity struct {
	ID              string          `json:"id" db:"id"`
	ReportID        string          `json:"report_id" db:"report_id"`
	GameID          string          `json:"game_id" db:"game_id"`
	BookID          string          `json:"book_id" db:"book_id"`
	Market          MarketType      `json:"market" db:"market"`
	Side            Side            `json:"side" db:"side"`
	MovementID      string          `json:"movement_id" db:"movement_id"`
	LineDirection   LineDirection   `json:"line_direction" db:"line_direction"`
	PublicDirection LineDirection   `json:"public_direction" db:"public_direction"`
	PublicPercent   decimal.Decimal `json:"public_percent" db:"public_percent"`
	CorrectedDelta  int             `json:"corrected_delta" db:"corrected_delta"`
	Strength        SignalStrength  `json:"strength" db:"strength"`
	WindowStart     time.Time       `json:"window_start" db:"window_start"`
	DetectedAt      time.Time       `json:"detected_at" db:"detected_at"`
}

// NaturalKey makes detection idempotent: re-running a pass on the same
// window produces the same key set.
func (o *RLMOpportunity) NaturalKey() string {
	return naturalKey(OpportunityRLM, o.GameID, string(o.Market), string(o.Side), o.BookID, o.WindowStart)
}

// SteamMove is a cross-book consensus movement in the same direction within
// a short window.
type SteamMove struct {
	ID                 string          `json:"id" db:"id"`
	ReportID           string          `json:"report_id" db:"report_id"`
	GameID             string          `json:"game_id" db:"game_id"`
	Market             MarketType      `json:"market" db:"market"`
	Side               Side            `json:"side" db:"side"`
	Direction          LineDirection   `json:"direction" db:"direction"`
	ParticipatingBooks []string        `json:"participating_books" db:"participating_books"`
	DivergentBooks     []string        `json:"divergent_books" db:"divergent_books"`
	AverageMovement    decimal.Decimal `json:"average_movement" db:"average_movement"`
	ConsensusStrength  decimal.Decimal `json:"consensus_strength" db:"consensus_strength"`
	WindowStart        time.Time       `json:"window_start" db:"window_start"`
	DetectedAt         time.Time       `json:"detected_at" db:"detected_at"`
}

// NaturalKey identifies the steam move by its window, not its detection run.
func (s *SteamMove) NaturalKey() string {
	return naturalKey(OpportunitySteam, s.GameID, string(s.Market), string(s.Side), "", s.WindowStart)
}

// ArbitrageOpportunity is a pair of quotes on complementary outcomes at two
// books whose implied probabilities sum below 100%.
type ArbitrageOpportunity struct {
	ID              string          `json:"id" db:"id"`
	ReportID        string          `json:"report_id" db:"report_id"`
	GameID          string          `json:"game_id" db:"game_id"`
	Market          MarketType      `json:"market" db:"market"`
	BookA           string          `json:"book_a" db:"book_a"`
	SideA           Side            `json:"side_a" db:"side_a"`
	OddsA           int             `json:"odds_a" db:"odds_a"`
	BookB           string          `json:"book_b" db:"book_b"`
	SideB           Side            `json:"side_b" db:"side_b"`
	OddsB           int             `json:"odds_b" db:"odds_b"`
	CombinedImplied decimal.Decimal `json:"combined_implied" db:"combined_implied"`
	ProfitPercent   decimal.Decimal `json:"profit_percent" db:"profit_percent"`
	WindowStart     time.Time       `json:"window_start" db:"window_start"`
	DetectedAt      time.Time       `json:"detected_at" db:"detected_at"`
	ExpiresAt       time.Time       `json:"expires_at" db:"expires_at"`
}

// NaturalKey keys the opportunity on the book pair and window so replays
// do not duplicate it.
func (a *ArbitrageOpportunity) NaturalKey() string {
	books := a.BookA + "+" + a.BookB
	return naturalKey(OpportunityArbitrage, a.GameID, string(a.Market), books, "", a.WindowStart)
}

// Expired reports whether the window has closed relative to now.
func (a *ArbitrageOpportunity) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

func naturalKey(typ OpportunityType, parts ...interface{}) string {
	elems := make([]string, 0, len(parts)+1)
	elems = append(elems, string(typ))
	for _, p := range parts {
		switch v := p.(type) {
		case time.Time:
			elems = append(elems, fmt.Sprintf("%d", v.UTC().Unix()))
		default:
			elems = append(elems, fmt.Sprintf("%v", v))
		}
	}
	return strings.Join(elems, "|")
}
