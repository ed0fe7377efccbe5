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

// SteamDetector looks for near-simultaneous same-direction movement across
// books for one game and market side. Coordinated movement across the
// market is the classic signature of sharp action hitting every book at
// once.
type SteamDetector struct {
	cfg    config.SteamConfig
	logger *logrus.Logger
}

func NewSteamDetector(cfg config.SteamConfig, logger *logrus.Logger) *SteamDetector {
	return &SteamDetector{cfg: cfg, logger: logger}
}

// Evaluate runs one pure pass over a movement window. Books whose net
// filtered movement clears the minimum delta vote a direction; a consensus
// of at least min_books in the majority direction is a steam move, with the
// dissenting books recorded rather than discarded.
func (d *SteamDetector) Evaluate(movements []models.MovementRecord, windowStart time.Time, reportID string) []models.SteamMove {
	type marketSide struct {
		market models.MarketType
		side   models.Side
	}

	byMarketSide := make(map[marketSide]map[string]int)
	var gameID string
	for _, m := range movements {
		if m.FilteredDelta == nil {
			continue
		}
		gameID = m.GameID
		key := marketSide{market: m.Market, side: m.Side}
		if byMarketSide[key] == nil {
			byMarketSide[key] = make(map[string]int)
		}
		byMarketSide[key][m.BookID] += *m.FilteredDelta
	}

	minDelta := d.cfg.MinDelta
	if minDelta <= 0 {
		minDelta = 5
	}
	minBooks := d.cfg.MinBooks
	if minBooks <= 0 {
		minBooks = 3
	}

	keys := make([]marketSide, 0, len(byMarketSide))
	for k := range byMarketSide {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].market != keys[j].market {
			return keys[i].market < keys[j].market
		}
		return keys[i].side < keys[j].side
	})

	var out []models.SteamMove
	for _, key := range keys {
		perBook := byMarketSide[key]

		var up, down []string
		magnitudes := make(map[string]int)
		for book, net := range perBook {
			if absInt(net) < minDelta {
				continue
			}
			magnitudes[book] = absInt(net)
			if net > 0 {
				up = append(up, book)
			} else {
				down = append(down, book)
			}
		}

		participating, divergent := up, down
		direction := models.DirectionUp
		if len(down) > len(up) {
			participating, divergent = down, up
			direction = models.DirectionDown
		}
		if len(participating) < minBooks || len(participating) <= len(divergent) {
			continue
		}

		sort.Strings(participating)
		sort.Strings(divergent)

		sum := 0
		for _, book := range participating {
			sum += magnitudes[book]
		}
		avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(participating))))
		consensus := decimal.NewFromInt(int64(len(participating))).
			Div(decimal.NewFromInt(int64(len(participating) + len(divergent))))

		out = append(out, models.SteamMove{
			ID:                 uuid.New().String(),
			ReportID:           reportID,
			GameID:             gameID,
			Market:             key.market,
			Side:               key.side,
			Direction:          direction,
			ParticipatingBooks: participating,
			DivergentBooks:     divergent,
			AverageMovement:    avg,
			ConsensusStrength:  consensus,
			WindowStart:        windowStart,
			DetectedAt:         time.Now().UTC(),
		})
	}
	return out
}
