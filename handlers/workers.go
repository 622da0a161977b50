package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyfix/middleware"
	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/recommendation"
	"handyfix/utils"
)

// WorkerService is the part of the recommendation dispatcher the worker endpoints use.
type WorkerService interface {
	recommendation.Finder
	AnalyzeDescription(ctx context.Context, in models.AnalyzeDescriptionRequest) (*models.IssueAnalysis, error)
}

// WorkersHandler exposes worker search outside a chat session.
type WorkersHandler struct {
	Service         WorkerService
	DefaultLocation string
}

func NewWorkersHandler(service WorkerService, defaultLocation string) *WorkersHandler {
	return &WorkersHandler{Service: service, DefaultLocation: defaultLocation}
}

func (h *WorkersHandler) location(c *gin.Context, requested string) string {
	if loc := strings.TrimSpace(requested); loc != "" {
		return loc
	}
	if loc := middleware.LocationFromContext(c); loc != "" {
		return loc
	}
	return h.DefaultLocation
}

// RecommendHandler returns ranked workers for a free-text query.
func (h *WorkersHandler) RecommendHandler(c *gin.Context) {
	logger := getLogger(c)

	var req models.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid recommend request", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	query := recommendation.NormalizeQuery(req.Query)

	workers, err := h.Service.FindWorkers(c.Request.Context(), query, req.MaxResults, h.location(c, req.Location))
	if err != nil {
		logger.Warn("Worker recommendation failed", zap.String("query", query), zap.Error(err))
		c.JSON(StatusFor(err), models.RecommendResponse{
			Success: false,
			Query:   query,
			Error:   apperror.UserMessage(err),
		})
		return
	}
	c.JSON(http.StatusOK, models.RecommendResponse{Success: true, Query: query, Workers: workers})
}

// AnalyzeDescriptionHandler returns workers suited to an issue description.
func (h *WorkersHandler) AnalyzeDescriptionHandler(c *gin.Context) {
	logger := getLogger(c)

	var req models.AnalyzeDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Description is required", err.Error())
		return
	}
	req.Location = h.location(c, req.Location)

	out, err := h.Service.AnalyzeDescription(c.Request.Context(), req)
	if err != nil {
		logger.Warn("Description analysis failed", zap.Error(err))
		c.JSON(StatusFor(err), models.IssueAnalysis{Success: false, Error: apperror.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, out)
}
