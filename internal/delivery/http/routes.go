package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mealscan/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		meals := v1.Group("/meals")
		{
			meals.POST("/analyze", handler.AnalyzeMeal)
			meals.GET("", handler.ListMeals)
			meals.GET("/:id", handler.GetMeal)
			meals.DELETE("/:id", handler.DeleteMeal)
		}

		analysis := v1.Group("/analysis")
		{
			analysis.POST("/sanitize", handler.SanitizeResponse)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/meals/normalize", handler.NormalizeMeals)
		}
	}

	return router
}
