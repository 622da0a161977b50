package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Chat endpoints
	CreateSessionHandler gin.HandlerFunc
	GetSessionHandler    gin.HandlerFunc
	EndSessionHandler    gin.HandlerFunc
	SendMessageHandler   gin.HandlerFunc
	UploadImageHandler   gin.HandlerFunc
	SendVoiceHandler     gin.HandlerFunc
	TapSuggestionHandler gin.HandlerFunc

	// Worker endpoints
	RecommendHandler          gin.HandlerFunc
	AnalyzeDescriptionHandler gin.HandlerFunc

	// Operations
	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle assembles the bundle from the handler structs.
func NewHandlerBundle(chatHandler *ChatHandler, workersHandler *WorkersHandler, healthHandler *HealthHandler) *HandlerBundle {
	return &HandlerBundle{
		CreateSessionHandler: chatHandler.CreateSessionHandler,
		GetSessionHandler:    chatHandler.GetSessionHandler,
		EndSessionHandler:    chatHandler.EndSessionHandler,
		SendMessageHandler:   chatHandler.SendMessageHandler,
		UploadImageHandler:   chatHandler.UploadImageHandler,
		SendVoiceHandler:     chatHandler.SendVoiceHandler,
		TapSuggestionHandler: chatHandler.TapSuggestionHandler,

		RecommendHandler:          workersHandler.RecommendHandler,
		AnalyzeDescriptionHandler: workersHandler.AnalyzeDescriptionHandler,

		HealthHandler: healthHandler.Handle,
	}
}
