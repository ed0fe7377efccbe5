package services

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

// ArbitrageDetector pairs the latest quotes on complementary moneyline
// outcomes across different books and emits an opportunity whenever the
// combined implied probability drops below 100%. Windows like that close
// within minutes, so every opportunity carries a short fixed expiry.
type ArbitrageDetector struct {
	cfg    config.ArbitrageConfig
	logger *logrus.Logger
}

func NewArbitrageDetector(cfg config.ArbitrageConfig, logger *logrus.Logger) *ArbitrageDetector {
	return &ArbitrageDetector{cfg: cfg, logger: logger}
}

// Evaluate runs one pure pass over the latest moneyline quotes per
// (book, side). Quotes on the two sides must have been observed within the
// configured overlap of each other to count as simultaneous.
func (d *ArbitrageDetector) Evaluate(latest []models.Quote, windowStart time.Time, reportID string) []models.ArbitrageOpportunity {
	overlap := d.cfg.Overlap()
	if overlap <= 0 {
		overlap = time.Minute
	}
	expiry := d.cfg.Expiry()
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	minProfit := decimal.NewFromFloat(d.cfg.MinProfitPercent)

	var homes, aways []models.Quote
	for _, q := range latest {
		if q.Market != models.MarketMoneyline || q.Status == models.LineStatusSuspended {
			continue
		}
		switch q.Side {
		case models.SideHome:
			homes = append(homes, q)
		case models.SideAway:
			aways = append(aways, q)
		}
	}

	sort.Slice(homes, func(i, j int) bool { return homes[i].BookID < homes[j].BookID })
	sort.Slice(aways, func(i, j int) bool { return aways[i].BookID < aways[j].BookID })

	now := time.Now().UTC()
	var out []models.ArbitrageOpportunity
	for _, home := range homes {
		for _, away := range aways {
			if home.BookID == away.BookID {
				continue
			}
			gap := home.ObservedAt.Sub(away.ObservedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap > overlap {
				continue
			}

			combined := ImpliedProbability(home.Odds).Add(ImpliedProbability(away.Odds))
			profit := ArbitrageProfitPercent(combined)
			if profit.LessThanOrEqual(decimal.Zero) || profit.LessThan(minProfit) {
				continue
			}

			out = append(out, models.ArbitrageOpportunity{
				ID:              uuid.New().String(),
				ReportID:        reportID,
				GameID:          home.GameID,
				Market:          models.MarketMoneyline,
				BookA:           home.BookID,
				SideA:           models.SideHome,
				OddsA:           home.Odds,
				BookB:           away.BookID,
				SideB:           models.SideAway,
				OddsB:           away.Odds,
				CombinedImplied: combined,
				ProfitPercent:   profit,
				WindowStart:     windowStart,
				DetectedAt:      now,
				ExpiresAt:       now.Add(expiry),
			})
		}
	}
	return out
}
