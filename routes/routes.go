package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"handyfix/handlers"
)

// RegisterChatRoutes registers the chat session endpoints.
func RegisterChatRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/chat/sessions")
	{
		api.POST("", hb.CreateSessionHandler)
		api.GET("/:id", hb.GetSessionHandler)
		api.DELETE("/:id", hb.EndSessionHandler)
		api.POST("/:id/messages", hb.SendMessageHandler)
		api.POST("/:id/images", hb.UploadImageHandler)
		api.POST("/:id/voice", hb.SendVoiceHandler)
		api.POST("/:id/suggestions/:suggestionID", hb.TapSuggestionHandler)
	}
}

// RegisterWorkerRoutes registers the standalone worker search endpoints.
func RegisterWorkerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/workers")
	{
		api.POST("/recommend", hb.RecommendHandler)
		api.POST("/analyze-description", hb.AnalyzeDescriptionHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterMetricsRoute exposes Prometheus metrics.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	RegisterChatRoutes(r, hb)
	RegisterWorkerRoutes(r, hb)
	RegisterHealthRoute(r, hb)
	RegisterMetricsRoute(r)
}
