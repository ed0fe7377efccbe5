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

type OpportunityHandler struct {
	db     services.Querier
	logger *logrus.Logger
}

type OpportunitiesResponse struct {
	Type      string      `json:"type"`
	Results   interface{} `json:"results"`
	Count     int         `json:"count"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOpportunityHandler(db services.Querier, logger *logrus.Logger) *OpportunityHandler {
	return &OpportunityHandler{db: db, logger: logger}
}

// GetOpportunities lists detected opportunities of one type, newest first.
// Supported types: rlm, steam, arbitrage.
func (h *OpportunityHandler) GetOpportunities(c *gin.Context) {
	oppType := c.Param("type")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	gameID := c.Query("game_id")

	var results interface{}
	var count int
	switch oppType {
	case "rlm":
		opps, err := h.fetchRLM(c, gameID, limit)
		if err != nil {
			h.respondQueryError(c, err)
			return
		}
		results, count = opps, len(opps)
	case "steam":
		moves, err := h.fetchSteam(c, gameID, limit)
		if err != nil {
			h.respondQueryError(c, err)
			return
		}
		results, count = moves, len(moves)
	case "arbitrage":
		opps, err := h.fetchArbitrage(c, gameID, limit)
		if err != nil {
			h.respondQueryError(c, err)
			return
		}
		results, count = opps, len(opps)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of rlm, steam, arbitrage"})
		return
	}

	c.JSON(http.StatusOK, OpportunitiesResponse{
		Type:      oppType,
		Results:   results,
		Count:     count,
		Timestamp: time.Now().UTC(),
	})
}

func (h *OpportunityHandler) respondQueryError(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Failed to query opportunities")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query opportunities"})
}

func (h *OpportunityHandler) fetchRLM(c *gin.Context, gameID string, limit int) ([]models.RLMOpportunity, error) {
	query := `
		SELECT id, report_id, game_id, book_id, market, side, movement_id,
			line_direction, public_direction, public_percent, corrected_delta,
			strength, window_start, detected_at
		FROM rlm_opportunities
	`
	query, args := scopeAndLimit(query, gameID, limit)

	rows, err := h.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RLMOpportunity{}
	for rows.Next() {
		var o models.RLMOpportunity
		if err := rows.Scan(
			&o.ID, &o.ReportID, &o.GameID, &o.BookID, &o.Market, &o.Side,
			&o.MovementID, &o.LineDirection, &o.PublicDirection, &o.PublicPercent,
			&o.CorrectedDelta, &o.Strength, &o.WindowStart, &o.DetectedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (h *OpportunityHandler) fetchSteam(c *gin.Context, gameID string, limit int) ([]models.SteamMove, error) {
	query := `
		SELECT id, report_id, game_id, market, side, direction,
			participating_books, divergent_books, average_movement,
			consensus_strength, window_start, detected_at
		FROM steam_moves
	`
	query, args := scopeAndLimit(query, gameID, limit)

	rows, err := h.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SteamMove{}
	for rows.Next() {
		var m models.SteamMove
		if err := rows.Scan(
			&m.ID, &m.ReportID, &m.GameID, &m.Market, &m.Side, &m.Direction,
			&m.ParticipatingBooks, &m.DivergentBooks, &m.AverageMovement,
			&m.ConsensusStrength, &m.WindowStart, &m.DetectedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (h *OpportunityHandler) fetchArbitrage(c *gin.Context, gameID string, limit int) ([]models.ArbitrageOpportunity, error) {
	query := `
		SELECT id, report_id, game_id, market, book_a, side_a, odds_a,
			book_b, side_b, odds_b, combined_implied, profit_percent,
			window_start, detected_at, expires_at
		FROM arbitrage_opportunities
	`
	query, args := scopeAndLimit(query, gameID, limit)

	rows, err := h.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activeOnly := c.DefaultQuery("active", "false") == "true"
	now := time.Now().UTC()

	out := []models.ArbitrageOpportunity{}
	for rows.Next() {
		var o models.ArbitrageOpportunity
		if err := rows.Scan(
			&o.ID, &o.ReportID, &o.GameID, &o.Market, &o.BookA, &o.SideA, &o.OddsA,
			&o.BookB, &o.SideB, &o.OddsB, &o.CombinedImplied, &o.ProfitPercent,
			&o.WindowStart, &o.DetectedAt, &o.ExpiresAt,
		); err != nil {
			return nil, err
		}
		if activeOnly && o.Expired(now) {
			continue
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scopeAndLimit(query, gameID string, limit int) (string, []interface{}) {
	args := []interface{}{}
	if gameID != "" {
		args = append(args, gameID)
		query += fmt.Sprintf(" WHERE game_id = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY detected_at DESC LIMIT $%d", len(args))
	return query, args
}
