package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MarketType identifies the betting market a quote belongs to.
type MarketType string

const (
	MarketMoneyline MarketType = "moneyline"
	MarketSpread    MarketType = "spread"
	MarketTotal     MarketType = "total"
)

// Side identifies which outcome of a market a quote prices.
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// LineStatus describes the lifecycle state of a quoted line.
type LineStatus string

const (
	LineStatusOpener    LineStatus = "opener"
	LineStatusNormal    LineStatus = "normal"
	LineStatusSuspended LineStatus = "suspended"
)

// SupportsSide reports whether a side is valid for the market type.
// Moneyline and spread markets price teams; totals price over/under.
func (m MarketType) SupportsSide(s Side) bool {
	switch m {
	case MarketMoneyline, MarketSpread:
		return s == SideHome || s == SideAway
	case MarketTotal:
		return s == SideOver || s == SideUnder
	default:
		return false
	}
}

// RequiresLineValue reports whether quotes for this market carry a point value.
func (m MarketType) RequiresLineValue() bool {
	return m == MarketSpread || m == MarketTotal
}

// Complement returns the opposite side of a two-way market.
func (s Side) Complement() Side {
	switch s {
	case SideHome:
		return SideAway
	case SideAway:
		return SideHome
	case SideOver:
		return SideUnder
	case SideUnder:
		return SideOver
	default:
		return s
	}
}

// Quote is a single odds observation for one side of one market at one
// sportsbook at one instant. Quotes are immutable once recorded; the
// uniqueness key is (game, book, market, side, observed_at).
type Quote struct {
	ID         string           `json:"id" db:"id"`
	GameID     string           `json:"game_id" db:"game_id"`
	BookID     string           `json:"book_id" db:"book_id"`
	BookName   string           `json:"book_name" db:"book_name"`
	Market     MarketType       `json:"market" db:"market"`
	Side       Side             `json:"side" db:"side"`
	Odds       int              `json:"odds" db:"odds"`
	LineValue  *decimal.Decimal `json:"line_value,omitempty" db:"line_value"`
	ObservedAt time.Time        `json:"observed_at" db:"observed_at"`
	IngestedAt time.Time        `json:"ingested_at" db:"ingested_at"`
	Status     LineStatus       `json:"status" db:"status"`
}

// SeriesKey identifies the (game, book, market, side) series a quote belongs
// to. Movement computation is scoped to a single series.
func (q *Quote) SeriesKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", q.GameID, q.BookID, q.Market, q.Side)
}

// DedupKey is the uniqueness key for ingestion, including the observation
// instant.
func (q *Quote) DedupKey() string {
	return fmt.Sprintf("%s|%d", q.SeriesKey(), q.ObservedAt.UTC().UnixNano())
}

// SameSeries reports whether two quotes belong to the same series.
func (q *Quote) SameSeries(other *Quote) bool {
	return q.GameID == other.GameID && q.BookID == other.BookID &&
		q.Market == other.Market && q.Side == other.Side
}

// PayloadEquals compares the value portion of two quotes, ignoring identity
// and ingestion metadata. Used to distinguish an exact redelivery from a
// conflicting duplicate key.
func (q *Quote) PayloadEquals(other *Quote) bool {
	if q.Odds != other.Odds || q.Status != other.Status {
		return false
	}
	if (q.LineValue == nil) != (other.LineValue == nil) {
		return false
	}
	if q.LineValue != nil && !q.LineValue.Equal(*other.LineValue) {
		return false
	}
	return true
}

// RawQuote is the untrusted payload delivered by the upstream collector.
type RawQuote struct {
	GameID     string           `json:"game_id"`
	BookID     string           `json:"book_id"`
	BookName   string           `json:"book_name"`
	Market     MarketType       `json:"market"`
	Side       Side             `json:"side"`
	Odds       int              `json:"odds"`
	LineValue  *decimal.Decimal `json:"line_value,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
	Status     LineStatus       `json:"status,omitempty"`
}

// BatchSummary reports the outcome of a normalization batch. No partial
// batch is presented as fully successful: every record lands in exactly one
// counter.
type BatchSummary struct {
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	Conflicts  int       `json:"conflicts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Total returns the number of records the batch processed.
func (b *BatchSummary) Total() int {
	return b.Accepted + b.Rejected + b.Duplicates + b.Conflicts
}
