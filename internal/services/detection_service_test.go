package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/models"
)

func newTestDetectionService(db Querier, cfg config.DetectionConfig) *DetectionService {
	logger := newTestLogger()
	return NewDetectionService(db, cfg,
		NewRLMDetector(config.RLMConfig{}, logger),
		NewSteamDetector(config.SteamConfig{}, logger),
		NewArbitrageDetector(config.ArbitrageConfig{}, logger),
		logger)
}

func TestDetectionService_DisabledStart(t *testing.T) {
	svc := newTestDetectionService(nil, config.DetectionConfig{Enabled: false})

	require.NoError(t, svc.Start())
	assert.False(t, svc.IsRunning())
}

func TestDetectionService_RunPassNoActiveGames(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := newTestDetectionService(mock, config.DetectionConfig{WindowMinutes: 30})

	mock.ExpectQuery("SELECT DISTINCT game_id").WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"game_id"}))

	require.NoError(t, svc.RunPass(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectionService_RunPassStoresArbitrage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := newTestDetectionService(mock, config.DetectionConfig{WindowMinutes: 30})

	observed := time.Now().UTC().Add(-time.Minute)
	quoteCols := []string{
		"id", "game_id", "book_id", "book_name", "market", "side", "odds",
		"line_value", "observed_at", "ingested_at", "status",
	}

	mock.ExpectQuery("SELECT DISTINCT game_id").WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"game_id"}).AddRow("game-1"))
	mock.ExpectQuery("SELECT id, quote_id, prev_quote_id").WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT game_id, market, side").WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"game_id"}))
	mock.ExpectQuery("SELECT DISTINCT ON").WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows(quoteCols).
			AddRow("q1", "game-1", "draftkings", "DraftKings", models.MarketMoneyline,
				models.SideHome, 120, nil, observed, observed, models.LineStatusNormal).
			AddRow("q2", "game-1", "fanduel", "FanDuel", models.MarketMoneyline,
				models.SideAway, -105, nil, observed, observed, models.LineStatusNormal))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO arbitrage_opportunities").WithArgs(anyArgs(16)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.RunPass(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetectionService_StartStop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := newTestDetectionService(mock, config.DetectionConfig{
		Enabled:         true,
		IntervalSeconds: 3600,
		WindowMinutes:   30,
	})

	// The initial pass fires immediately on start.
	mock.ExpectQuery("SELECT DISTINCT game_id").WithArgs(anyArgs(1)...).
		WillReturnRows(pgxmock.NewRows([]string{"game_id"}))

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start(), "second start must be rejected")

	svc.Stop()
	assert.False(t, svc.IsRunning())
}
