package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

func steamMovement(book string, delta int, observedAt time.Time) models.MovementRecord {
	d := delta
	return models.MovementRecord{
		ID:             "m-" + book,
		GameID:         "game-1",
		BookID:         book,
		Market:         models.MarketMoneyline,
		Side:           models.SideHome,
		CorrectedDelta: delta,
		FilteredDelta:  &d,
		ObservedAt:     observedAt,
	}
}

func TestSteamDetector_DetectsConsensusMove(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	movements := []models.MovementRecord{
		steamMovement("draftkings", 10, base),
		steamMovement("fanduel", 8, base.Add(time.Minute)),
		steamMovement("betmgm", 12, base.Add(2*time.Minute)),
		steamMovement("caesars", 6, base.Add(3*time.Minute)),
		steamMovement("pinnacle", -9, base.Add(2*time.Minute)),
	}

	moves := detector.Evaluate(movements, base, "report-1")
	require.Len(t, moves, 1)

	move := moves[0]
	assert.Equal(t, models.DirectionUp, move.Direction)
	assert.Equal(t, []string{"betmgm", "caesars", "draftkings", "fanduel"}, move.ParticipatingBooks)
	assert.Equal(t, []string{"pinnacle"}, move.DivergentBooks)
	// (10+8+12+6)/4 average magnitude, 4 of 5 books in consensus.
	assert.True(t, move.AverageMovement.Equal(decimal.NewFromInt(9)))
	assert.True(t, move.ConsensusStrength.Equal(decimal.NewFromFloat(0.8)))
}

func TestSteamDetector_RequiresMinimumBooks(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	movements := []models.MovementRecord{
		steamMovement("draftkings", 10, base),
		steamMovement("fanduel", 8, base.Add(time.Minute)),
	}

	assert.Empty(t, detector.Evaluate(movements, base, "report-1"))
}

func TestSteamDetector_IgnoresBooksBelowMinimumDelta(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// Only two books clear the per-book minimum.
	movements := []models.MovementRecord{
		steamMovement("draftkings", 10, base),
		steamMovement("fanduel", 8, base),
		steamMovement("betmgm", 2, base),
		steamMovement("caesars", 3, base),
	}

	assert.Empty(t, detector.Evaluate(movements, base, "report-1"))
}

func TestSteamDetector_NoConsensusOnSplitMarket(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// Three up, three down: no majority, no steam.
	movements := []models.MovementRecord{
		steamMovement("draftkings", 10, base),
		steamMovement("fanduel", 8, base),
		steamMovement("betmgm", 6, base),
		steamMovement("caesars", -10, base),
		steamMovement("pinnacle", -8, base),
		steamMovement("circa", -6, base),
	}

	assert.Empty(t, detector.Evaluate(movements, base, "report-1"))
}

func TestSteamDetector_NetsMultipleMovesPerBook(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{MinBooks: 3}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// DraftKings oscillates to a net of +1, which is below the per-book
	// minimum, so it neither participates nor diverges.
	movements := []models.MovementRecord{
		steamMovement("draftkings", 8, base),
		steamMovement("fanduel", 9, base),
		steamMovement("betmgm", 7, base),
		steamMovement("caesars", 6, base),
	}
	dk := steamMovement("draftkings", -7, base.Add(time.Minute))
	movements = append(movements, dk)

	moves := detector.Evaluate(movements, base, "report-1")
	require.Len(t, moves, 1)
	assert.Equal(t, []string{"betmgm", "caesars", "fanduel"}, moves[0].ParticipatingBooks)
	assert.Empty(t, moves[0].DivergentBooks)
}

func TestSteamDetector_DownwardConsensus(t *testing.T) {
	detector := NewSteamDetector(config.SteamConfig{}, newTestLogger())
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	movements := []models.MovementRecord{
		steamMovement("draftkings", -10, base),
		steamMovement("fanduel", -8, base),
		steamMovement("betmgm", -12, base),
	}

	moves := detector.Evaluate(movements, base, "report-1")
	require.Len(t, moves, 1)
	assert.Equal(t, models.DirectionDown, moves[0].Direction)
	assert.True(t, moves[0].ConsensusStrength.Equal(decimal.NewFromInt(1)))
}
