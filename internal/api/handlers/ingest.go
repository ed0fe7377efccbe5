package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/services"
)

type IngestHandler struct {
	db         services.Querier
	normalizer *services.QuoteNormalizer
	movements  *services.MovementCalculator
	logger     *logrus.Logger
}

type IngestRequest struct {
	Quotes []models.RawQuote `json:"quotes" binding:"required"`
}

type IngestResponse struct {
	Summary models.BatchSummary `json:"summary"`
}

func NewIngestHandler(db services.Querier, normalizer *services.QuoteNormalizer, movements *services.MovementCalculator, logger *logrus.Logger) *IngestHandler {
	return &IngestHandler{
		db:         db,
		normalizer: normalizer,
		movements:  movements,
		logger:     logger,
	}
}

// IngestQuotes accepts a provider batch, normalizes and persists it, then
// derives a movement record for every accepted quote.
func (h *IngestHandler) IngestQuotes(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Quotes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quotes must not be empty"})
		return
	}

	ctx := c.Request.Context()
	summary, accepted, err := h.normalizer.IngestBatch(ctx, req.Quotes)
	if err != nil {
		h.logger.WithError(err).Error("Quote batch ingest aborted")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "batch ingest aborted",
			"summary": summary,
		})
		return
	}

	games := make(map[string]*models.Game)
	for i := range accepted {
		q := &accepted[i]
		game, ok := games[q.GameID]
		if !ok {
			game, err = h.fetchGame(ctx, q.GameID)
			if err != nil {
				h.logger.WithError(err).WithField("game_id", q.GameID).Error("Failed to load game for movement derivation")
				continue
			}
			games[q.GameID] = game
		}
		if game == nil {
			continue
		}
		if _, err := h.movements.ProcessQuote(ctx, q, game); err != nil {
			h.logger.WithError(err).WithField("quote_id", q.ID).Error("Failed to derive movement")
		}
	}

	c.JSON(http.StatusOK, IngestResponse{Summary: *summary})
}

func (h *IngestHandler) fetchGame(ctx context.Context, gameID string) (*models.Game, error) {
	query := `
		SELECT id, game_date, start_time, home_team, away_team, status, home_score, away_score
		FROM games
		WHERE id = $1
	`

	var game models.Game
	err := h.db.QueryRow(ctx, query, gameID).Scan(
		&game.ID, &game.GameDate, &game.StartTime, &game.HomeTeam,
		&game.AwayTeam, &game.Status, &game.HomeScore, &game.AwayScore,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}
