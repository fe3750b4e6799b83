package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"scribe/internal/config"
	"scribe/internal/controllers"
	"scribe/internal/pkg/speech"
)

// SetupRouter initializes all services, controllers, and API routes
func SetupRouter(db *gorm.DB, cfg *config.Config, queue *asynq.Client) *gin.Engine {
	researchController := controllers.ResearchController{
		DB:    db,
		Queue: queue,
		Synth: speech.New(cfg.OpenAIAPIKey),
	}

	// Set up Gin router
	router := gin.Default()

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	// Group API routes under /api/v1
	api := router.Group("/api/v1")
	{
		// POST /api/v1/research
		// Accepts a research question and kicks off the pipeline
		api.POST("/research", researchController.CreateResearch)

		records := api.Group("/records")
		{
			records.GET("/", researchController.GetRecords)
			records.GET("/:id", researchController.GetRecord)
			records.GET("/:id/audio", researchController.GetRecordAudio)
		}

		// Endpoints backing the MCP shim
		mcp := api.Group("/mcp")
		{
			mcp.GET("/records/search", researchController.SearchRecords)
		}
	}

	return router
}
