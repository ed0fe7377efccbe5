package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/models"
	"github.com/sharpline/sharpline-go/internal/services"
)

type PerformanceHandler struct {
	db              services.Querier
	recommendations *services.RecommendationService
	defaultPeriod   string
	logger          *logrus.Logger
}

type PerformanceRow struct {
	models.PerformanceKey
	TotalBets         int             `json:"total_bets"`
	Wins              int             `json:"wins"`
	Losses            int             `json:"losses"`
	Pushes            int             `json:"pushes"`
	TotalUnitsWagered decimal.Decimal `json:"total_units_wagered"`
	TotalProfitLoss   decimal.Decimal `json:"total_profit_loss"`
	WinRate           decimal.Decimal `json:"win_rate"`
	ROIPercent        decimal.Decimal `json:"roi_percent"`
	ConfidenceTier    string          `json:"confidence_tier"`
	ComputedAt        time.Time       `json:"computed_at"`
}

type PerformanceResponse struct {
	Rows      []PerformanceRow `json:"rows"`
	Count     int              `json:"count"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewPerformanceHandler(db services.Querier, recommendations *services.RecommendationService, defaultPeriod string, logger *logrus.Logger) *PerformanceHandler {
	if defaultPeriod == "" {
		defaultPeriod = "all_time"
	}
	return &PerformanceHandler{
		db:              db,
		recommendations: recommendations,
		defaultPeriod:   defaultPeriod,
		logger:          logger,
	}
}

// GetPerformance lists stored timing-bucket aggregates, filtered by any
// subset of the key dimensions.
func (h *PerformanceHandler) GetPerformance(c *gin.Context) {
	query := `
		SELECT timing_bucket, source, book_id, market, strategy, analysis_period,
			total_bets, wins, losses, pushes, total_units_wagered,
			total_profit_loss, win_rate, roi_percent, confidence_tier, computed_at
		FROM timing_bucket_performance
		WHERE analysis_period = $1
	`
	args := []interface{}{c.DefaultQuery("period", h.defaultPeriod)}

	filters := map[string]string{
		"timing_bucket": c.Query("timing_bucket"),
		"source":        c.Query("source"),
		"book_id":       c.Query("book_id"),
		"market":        c.Query("market"),
		"strategy":      c.Query("strategy"),
	}
	for _, col := range []string{"timing_bucket", "source", "book_id", "market", "strategy"} {
		if v := filters[col]; v != "" {
			args = append(args, v)
			query += fmt.Sprintf(" AND %s = $%d", col, len(args))
		}
	}
	query += " ORDER BY timing_bucket, source, book_id, market, strategy"

	rows, err := h.db.Query(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query performance aggregates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query performance"})
		return
	}
	defer rows.Close()

	out := []PerformanceRow{}
	for rows.Next() {
		var r PerformanceRow
		if err := rows.Scan(
			&r.TimingBucket, &r.Source, &r.BookID, &r.Market, &r.Strategy,
			&r.AnalysisPeriod, &r.TotalBets, &r.Wins, &r.Losses, &r.Pushes,
			&r.TotalUnitsWagered, &r.TotalProfitLoss, &r.WinRate, &r.ROIPercent,
			&r.ConfidenceTier, &r.ComputedAt,
		); err != nil {
			h.logger.WithError(err).Error("Failed to scan performance row")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read performance"})
			return
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read performance"})
		return
	}

	c.JSON(http.StatusOK, PerformanceResponse{
		Rows:      out,
		Count:     len(out),
		Timestamp: time.Now().UTC(),
	})
}

// GetRecommendation answers for one fully specified performance key.
func (h *PerformanceHandler) GetRecommendation(c *gin.Context) {
	key := models.PerformanceKey{
		TimingBucket:   models.RecTimingBucket(c.Query("timing_bucket")),
		Source:         c.Query("source"),
		BookID:         c.Query("book_id"),
		Market:         models.MarketType(c.Query("market")),
		Strategy:       c.Query("strategy"),
		AnalysisPeriod: c.DefaultQuery("period", h.defaultPeriod),
	}
	if key.TimingBucket == "" || key.Source == "" || key.BookID == "" || key.Market == "" || key.Strategy == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "timing_bucket, source, book_id, market and strategy parameters are required",
		})
		return
	}

	rec, err := h.recommendations.RecommendationFor(c.Request.Context(), key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build recommendation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build recommendation"})
		return
	}

	c.JSON(http.StatusOK, rec)
}
