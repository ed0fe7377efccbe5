package services

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/utils"
)

// RLMDetector flags reverse line movement: the line drifting against the
// side the public is betting, commonly read as sharp money on the other
// side. Detection needs the public-betting split for the market; when the
// splits provider has nothing, the market is skipped, not failed.
type RLMDetector struct {
	cfg    config.RLMConfig
	logger *logrus.Logger
}

func NewRLMDetector(cfg config.RLMConfig, logger *logrus.Logger) *RLMDetector {
	return &RLMDetector{cfg: cfg, logger: logger}
}

// Evaluate runs one pure detection pass over a movement window and the
// betting splits available for the game. Re-running on the same window
// yields the same opportunity set.
func (d *RLMDetector) Evaluate(movements []models.MovementRecord, splits []models.BettingSplit, windowStart time.Time, reportID string) []models.RLMOpportunity {
	groups := groupBySeries(movements)
	latestSplits := latestSplitBySide(splits)

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.RLMOpportunity
	for _, key := range keys {
		group := groups[key]
		last := group[len(group)-1]

		split, ok := latestSplits[splitKey(last.Market, last.Side)]
		if !ok {
			warn := utils.NewDataQualityWarning(key, "no public betting split, RLM skipped")
			d.logger.WithError(warn).Debug("RLM pass skipped for market side")
			continue
		}

		minPublic := decimal.NewFromFloat(d.threshold(d.cfg.MinPublicPercent, 55))
		if split.BetPercent.LessThan(minPublic) {
			continue
		}

		deltas, total := filteredDeltas(group)
		if len(deltas) == 0 {
			continue
		}

		lineDir := LineDirectionOf(deltas, d.cfg.SmoothingPeriod)
		// Public money on a side pushes its price down (shorter). The line
		// lengthening instead is the reverse move.
		if lineDir != models.DirectionUp {
			continue
		}

		divergence := split.BetPercent.Sub(decimal.NewFromInt(50))
		out = append(out, models.RLMOpportunity{
			ID:              uuid.New().String(),
			ReportID:        reportID,
			GameID:          last.GameID,
			BookID:          last.BookID,
			Market:          last.Market,
			Side:            last.Side,
			MovementID:      last.ID,
			LineDirection:   lineDir,
			PublicDirection: models.DirectionDown,
			PublicPercent:   split.BetPercent,
			CorrectedDelta:  total,
			Strength:        d.strength(divergence, total),
			WindowStart:     windowStart,
			DetectedAt:      time.Now().UTC(),
		})
	}
	return out
}

func (d *RLMDetector) strength(divergence decimal.Decimal, totalDelta int) models.SignalStrength {
	strongDiv := decimal.NewFromFloat(d.threshold(d.cfg.StrongDivergence, 20))
	moderateDiv := decimal.NewFromFloat(d.threshold(d.cfg.ModerateDivergence, 10))
	magnitude := absInt(totalDelta)

	strongDelta := d.cfg.StrongDelta
	if strongDelta <= 0 {
		strongDelta = 20
	}
	moderateDelta := d.cfg.ModerateDelta
	if moderateDelta <= 0 {
		moderateDelta = 10
	}

	switch {
	case divergence.GreaterThanOrEqual(strongDiv) && magnitude >= strongDelta:
		return models.StrengthStrong
	case divergence.GreaterThanOrEqual(moderateDiv) && magnitude >= moderateDelta:
		return models.StrengthModerate
	default:
		return models.StrengthWeak
	}
}

func (d *RLMDetector) threshold(configured, fallback float64) float64 {
	if configured > 0 {
		return configured
	}
	return fallback
}

// groupBySeries buckets movements by (book, market, side), each group
// ordered by observation time.
func groupBySeries(movements []models.MovementRecord) map[string][]models.MovementRecord {
	groups := make(map[string][]models.MovementRecord)
	for _, m := range movements {
		key := m.BookID + "|" + string(m.Market) + "|" + string(m.Side)
		groups[key] = append(groups[key], m)
	}
	for key := range groups {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool {
			return group[i].ObservedAt.Before(group[j].ObservedAt)
		})
		groups[key] = group
	}
	return groups
}

// filteredDeltas extracts genuine movement, skipping records the quality
// filter nulled out, and returns the series plus its sum.
func filteredDeltas(movements []models.MovementRecord) ([]float64, int) {
	deltas := make([]float64, 0, len(movements))
	total := 0
	for _, m := range movements {
		if m.FilteredDelta == nil {
			continue
		}
		deltas = append(deltas, float64(*m.FilteredDelta))
		total += *m.FilteredDelta
	}
	return deltas, total
}

func splitKey(market models.MarketType, side models.Side) string {
	return string(market) + "|" + string(side)
}

func latestSplitBySide(splits []models.BettingSplit) map[string]models.BettingSplit {
	latest := make(map[string]models.BettingSplit)
	for _, s := range splits {
		key := splitKey(s.Market, s.Side)
		if cur, ok := latest[key]; !ok || s.RecordedAt.After(cur.RecordedAt) {
			latest[key] = s
		}
	}
	return latest
}
