package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharpline/sharpline-go/internal/api/handlers"
	"github.com/sharpline/sharpline-go/internal/database"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Handlers bundles the route handlers so main can wire them in one place.
type Handlers struct {
	Ingest      *handlers.IngestHandler
	Movement    *handlers.MovementHandler
	Opportunity *handlers.OpportunityHandler
	Performance *handlers.PerformanceHandler
	Pair        *handlers.PairHandler
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, h Handlers) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/quotes", h.Ingest.IngestQuotes)
		v1.GET("/quotes/:id/pair", h.Pair.GetQuotePair)

		v1.GET("/movements", h.Movement.GetMovements)

		v1.GET("/opportunities/:type", h.Opportunity.GetOpportunities)

		v1.GET("/performance", h.Performance.GetPerformance)
		v1.GET("/recommendations", h.Performance.GetRecommendation)
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
