package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyfix/config"
	"handyfix/handlers"
	"handyfix/middleware"
	"handyfix/routes"
	"handyfix/services/chat"
	"handyfix/services/intelligence"
	"handyfix/services/recommendation"
	"handyfix/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Remote capabilities. Missing credentials are reported per call, not at startup.
	if err := intelligence.ValidateAPIKey(cfg.GeminiAPIKey); err != nil {
		logger.Warn("main: Gemini is not configured; chat replies will report a configuration error", zap.Error(err))
	}
	gemini := intelligence.NewGeminiClient(intelligence.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		TextModel:   cfg.GeminiModel,
		VisionModel: cfg.GeminiVisionModel,
		Timeout:     cfg.LLMTimeout,
	}, logger.Named("gemini"))
	defer gemini.Close()

	transcriber := intelligence.NewSpeechTranscriber(cfg.GoogleServiceAccountFile, cfg.SpeechLanguage, cfg.LLMTimeout, logger.Named("speech"))
	defer transcriber.Close()

	var resultCache recommendation.ResultCache
	if redisClient := utils.GetCacheClient(); redisClient != nil {
		resultCache = recommendation.NewRedisResultCache(redisClient, cfg.RecommendationCacheTTL, logger.Named("cache"))
		defer redisClient.Close()
	}
	dispatcher := recommendation.NewDispatcher(recommendation.Options{
		BaseURL:    cfg.RecommendationURL,
		Timeout:    cfg.RecommendationTimeout,
		RatePerMin: cfg.RecommendationRatePerMin,
	}, resultCache, logger.Named("recommendation"))

	utils.StartHealthMonitor(appCtx, utils.CacheClient, dispatcher)

	// Chat sessions.
	params := intelligence.SamplingParams{
		Temperature:     cfg.GeminiTemperature,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
	}
	sessions := chat.NewManager(cfg.ChatSessionTTL, func(inbox *chat.Inbox, location string) *chat.Orchestrator {
		return chat.NewOrchestrator(chat.Dependencies{
			Completer: gemini,
			Vision:    gemini,
			Finder:    dispatcher,
			Notifier:  inbox,
			Presenter: inbox,
			Params:    params,
			MaxTurns:  cfg.ChatContextTurns,
			Location:  location,
			Logger:    logger.Named("chat"),
		})
	}, logger.Named("sessions"))
	go sessions.Run(appCtx)

	// Create the Gin router.
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))
	var geolocator *middleware.Geolocator
	if cfg.GeolocationEnabled {
		geolocator = middleware.NewGeolocator(utils.CacheClient, cfg.GeolocationCacheTTL)
	}
	router.Use(middleware.GeolocationMiddleware(geolocator))
	router.MaxMultipartMemory = cfg.ChatMaxImageBytes

	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewChatHandler(sessions, transcriber, cfg.DefaultLocation, cfg.ChatMaxImageBytes),
		handlers.NewWorkersHandler(dispatcher, cfg.DefaultLocation),
		&handlers.HealthHandler{Sessions: sessions},
	)
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	stopApp()
	sessions.CloseAll()
	_ = logger.Sync()

	logger.Sugar().Info("main: server stopped gracefully")
}
