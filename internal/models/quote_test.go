package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMarketType_SupportsSide(t *testing.T) {
	assert.True(t, MarketMoneyline.SupportsSide(SideHome))
	assert.True(t, MarketSpread.SupportsSide(SideAway))
	assert.True(t, MarketTotal.SupportsSide(SideOver))
	assert.True(t, MarketTotal.SupportsSide(SideUnder))

	assert.False(t, MarketMoneyline.SupportsSide(SideOver))
	assert.False(t, MarketTotal.SupportsSide(SideHome))
	assert.False(t, MarketType("props").SupportsSide(SideHome))
}

func TestMarketType_RequiresLineValue(t *testing.T) {
	assert.False(t, MarketMoneyline.RequiresLineValue())
	assert.True(t, MarketSpread.RequiresLineValue())
	assert.True(t, MarketTotal.RequiresLineValue())
}

func TestSide_Complement(t *testing.T) {
	assert.Equal(t, SideAway, SideHome.Complement())
	assert.Equal(t, SideHome, SideAway.Complement())
	assert.Equal(t, SideUnder, SideOver.Complement())
	assert.Equal(t, SideOver, SideUnder.Complement())
}

func TestQuote_Keys(t *testing.T) {
	observed := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	a := Quote{GameID: "g1", BookID: "dk", Market: MarketMoneyline, Side: SideHome, ObservedAt: observed}
	b := Quote{GameID: "g1", BookID: "dk", Market: MarketMoneyline, Side: SideHome, ObservedAt: observed.Add(time.Minute)}
	c := Quote{GameID: "g1", BookID: "fd", Market: MarketMoneyline, Side: SideHome, ObservedAt: observed}

	assert.Equal(t, a.SeriesKey(), b.SeriesKey())
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.SeriesKey(), c.SeriesKey())
	assert.True(t, a.SameSeries(&b))
	assert.False(t, a.SameSeries(&c))
}

func TestQuote_PayloadEquals(t *testing.T) {
	line := decimal.NewFromFloat(8.5)
	otherLine := decimal.NewFromFloat(9.0)

	a := Quote{Odds: -110, LineValue: &line, Status: LineStatusNormal}
	b := Quote{Odds: -110, LineValue: &line, Status: LineStatusNormal}
	assert.True(t, a.PayloadEquals(&b))

	b.Odds = -115
	assert.False(t, a.PayloadEquals(&b))

	b.Odds = -110
	b.LineValue = &otherLine
	assert.False(t, a.PayloadEquals(&b))

	b.LineValue = nil
	assert.False(t, a.PayloadEquals(&b))

	b.LineValue = &line
	b.Status = LineStatusSuspended
	assert.False(t, a.PayloadEquals(&b))
}

func TestBatchSummary_Total(t *testing.T) {
	summary := BatchSummary{Accepted: 3, Rejected: 1, Duplicates: 2, Conflicts: 1}
	assert.Equal(t, 7, summary.Total())
}
