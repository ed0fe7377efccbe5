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

type PairHandler struct {
	db      services.Querier
	pairing *services.SidePairingMatcher
	logger  *logrus.Logger
}

type PairResponse struct {
	Quote     models.Quote  `json:"quote"`
	Pair      *models.Quote `json:"pair,omitempty"`
	TimeDelta *float64      `json:"time_delta_seconds,omitempty"`
	Paired    bool          `json:"paired"`
}

func NewPairHandler(db services.Querier, pairing *services.SidePairingMatcher, logger *logrus.Logger) *PairHandler {
	return &PairHandler{db: db, pairing: pairing, logger: logger}
}

// GetQuotePair returns the complementary-side quote observed closest in time
// to the given quote, if one exists inside the pairing window. A one-sided
// answer is a normal outcome, not an error.
func (h *PairHandler) GetQuotePair(c *gin.Context) {
	quoteID := c.Param("id")

	quote, err := h.fetchQuote(c.Request.Context(), quoteID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load quote")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quote"})
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
		return
	}

	match, err := h.pairing.FindPair(c.Request.Context(), quote)
	if err != nil {
		h.logger.WithError(err).Error("Failed to find pair")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find pair"})
		return
	}

	resp := PairResponse{Quote: *quote}
	if match != nil {
		delta := match.TimeDelta.Seconds()
		resp.Pair = &match.Quote
		resp.TimeDelta = &delta
		resp.Paired = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PairHandler) fetchQuote(ctx context.Context, id string) (*models.Quote, error) {
	query := `
		SELECT id, game_id, book_id, book_name, market, side, odds, line_value,
			observed_at, ingested_at, status
		FROM quotes
		WHERE id = $1
	`

	var q models.Quote
	err := h.db.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.GameID, &q.BookID, &q.BookName, &q.Market, &q.Side,
		&q.Odds, &q.LineValue, &q.ObservedAt, &q.IngestedAt, &q.Status,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}
