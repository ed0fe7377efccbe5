package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/services"
)

type MovementHandler struct {
	db     services.Querier
	logger *logrus.Logger
}

type MovementsResponse struct {
	Movements []models.MovementRecord `json:"movements"`
	Count     int                     `json:"count"`
	Timestamp time.Time               `json:"timestamp"`
}

func NewMovementHandler(db services.Querier, logger *logrus.Logger) *MovementHandler {
	return &MovementHandler{db: db, logger: logger}
}

// GetMovements lists movement records for a game, newest first. Optional
// filters narrow by book, market and timing bucket.
func (h *MovementHandler) GetMovements(c *gin.Context) {
	gameID := c.Query("game_id")
	if gameID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_id parameter is required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}

	query := `
		SELECT id, quote_id, prev_quote_id, game_id, book_id, market, side,
			prev_odds, curr_odds, corrected_delta, raw_delta, filtered_delta,
			line_value_delta, line_value_changed, elapsed_seconds,
			quality_score, movement_type, timing_bucket, observed_at, created_at
		FROM movement_records
		WHERE game_id = $1
	`
	args := []interface{}{gameID}

	if book := c.Query("book_id"); book != "" {
		args = append(args, book)
		query += fmt.Sprintf(" AND book_id = $%d", len(args))
	}
	if market := c.Query("market"); market != "" {
		args = append(args, market)
		query += fmt.Sprintf(" AND market = $%d", len(args))
	}
	if bucket := c.Query("timing_bucket"); bucket != "" {
		args = append(args, bucket)
		query += fmt.Sprintf(" AND timing_bucket = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY observed_at DESC LIMIT $%d", len(args))

	rows, err := h.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query movements")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query movements"})
		return
	}
	defer rows.Close()

	movements := []models.MovementRecord{}
	for rows.Next() {
		var m models.MovementRecord
		if err := rows.Scan(
			&m.ID, &m.QuoteID, &m.PrevQuoteID, &m.GameID, &m.BookID, &m.Market,
			&m.Side, &m.PrevOdds, &m.CurrOdds, &m.CorrectedDelta, &m.RawDelta,
			&m.FilteredDelta, &m.LineValueDelta, &m.LineValueChanged,
			&m.ElapsedSeconds, &m.QualityScore, &m.MovementType, &m.TimingBucket,
			&m.ObservedAt, &m.CreatedAt,
		); err != nil {
			h.logger.WithError(err).Error("Failed to scan movement record")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read movements"})
			return
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read movements"})
		return
	}

	c.JSON(http.StatusOK, MovementsResponse{
		Movements: movements,
		Count:     len(movements),
		Timestamp: time.Now().UTC(),
	})
}
