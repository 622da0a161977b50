package recommendation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"handyfix/metrics"
	"handyfix/models"
	"handyfix/services/apperror"
)

const (
	DefaultQuery      = "general maintenance"
	DefaultMaxResults = 5
	// Limits enforced by the recommendation backend's request validation.
	MaxResultsLimit = 20
	MaxQueryLength  = 1000

	defaultAnalyzeResults = 3
	maxResponseBytes      = 4 << 20

	searchPath  = "/api/search-workers"
	analyzePath = "/api/analyze-image-description"
	healthPath  = "/health"

	genericFailure = "Failed to get worker recommendations"
)

// Finder finds ranked workers for a free-text query.
type Finder interface {
	FindWorkers(ctx context.Context, query string, maxResults int, location string) ([]models.WorkerRecommendation, error)
}

// Options configures a Dispatcher.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerMin int
	HTTPClient *http.Client
}

// Dispatcher talks to the worker recommendation backend. It never falls back on its own;
// callers decide how to degrade when it returns an error.
type Dispatcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cache   ResultCache
	logger  *zap.Logger
}

func NewDispatcher(opts Options, cache ResultCache, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	var limiter *rate.Limiter
	if opts.RatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMin)), opts.RatePerMin)
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  client,
		limiter: limiter,
		cache:   cache,
		logger:  logger,
	}
}

// NormalizeQuery collapses whitespace, substitutes the default query for empty input and
// truncates to the backend's length limit.
func NormalizeQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return DefaultQuery
	}
	if r := []rune(q); len(r) > MaxQueryLength {
		q = strings.TrimSpace(string(r[:MaxQueryLength]))
	}
	return q
}

func normalizeMaxResults(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// FindWorkers returns workers in the order the backend ranked them. An empty list is a
// normal result, not an error.
func (d *Dispatcher) FindWorkers(ctx context.Context, query string, maxResults int, location string) (workers []models.WorkerRecommendation, err error) {
	req := models.RecommendRequest{
		Query:      NormalizeQuery(query),
		MaxResults: normalizeMaxResults(maxResults, DefaultMaxResults),
		Location:   strings.TrimSpace(location),
	}

	if d.cache != nil {
		if cached, ok := d.cache.Get(ctx, req); ok {
			return cached, nil
		}
	}

	start := time.Now()
	defer func() { metrics.ObserveRemoteCall(metrics.CapabilityRecommendation, start, err) }()

	var resp models.RecommendResponse
	if err := d.post(ctx, searchPath, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = genericFailure
		}
		d.logger.Warn("Recommendation backend reported failure", zap.String("query", req.Query), zap.String("error", msg))
		return nil, apperror.BackendLogic(msg)
	}

	workers = resp.Workers
	if workers == nil {
		workers = []models.WorkerRecommendation{}
	}
	d.logger.Debug("Recommendations received", zap.String("query", req.Query), zap.Int("count", len(workers)))

	if d.cache != nil && len(workers) > 0 {
		d.cache.Set(ctx, req, workers)
	}
	return workers, nil
}

// AnalyzeDescription asks the backend for workers matching an issue description.
func (d *Dispatcher) AnalyzeDescription(ctx context.Context, in models.AnalyzeDescriptionRequest) (out *models.IssueAnalysis, err error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, apperror.BackendLogic("Description cannot be empty")
	}
	in.Location = strings.TrimSpace(in.Location)
	in.MaxResults = normalizeMaxResults(in.MaxResults, defaultAnalyzeResults)

	start := time.Now()
	defer func() { metrics.ObserveRemoteCall(metrics.CapabilityRecommendation, start, err) }()

	var resp models.IssueAnalysis
	if err := d.post(ctx, analyzePath, in, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = genericFailure
		}
		return nil, apperror.BackendLogic(msg)
	}
	if resp.RecommendedWorkers == nil {
		resp.RecommendedWorkers = []models.WorkerSummary{}
	}
	return &resp, nil
}

// Health reports the backend's readiness. The backend always answers 200 and puts the
// real state in the body.
func (d *Dispatcher) Health(ctx context.Context) (*models.BackendHealth, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}
	var health models.BackendHealth
	if err := d.do(httpReq, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (d *Dispatcher) post(ctx context.Context, path string, body, out any) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return apperror.Transport(0, "", "too many recommendation requests", err)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal recommendation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build recommendation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return d.do(httpReq, out)
}

func (d *Dispatcher) do(httpReq *http.Request, out any) error {
	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Error("Failed to call recommendation service", zap.String("path", httpReq.URL.Path), zap.Error(err))
		return transportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Error("Recommendation service returned non-OK status",
			zap.String("path", httpReq.URL.Path), zap.Int("status", resp.StatusCode))
		msg := backendMessage(raw)
		if msg == "" {
			msg = genericFailure
		}
		return apperror.Transport(resp.StatusCode, string(raw), msg, nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		d.logger.Error("Failed to decode recommendation response", zap.String("path", httpReq.URL.Path), zap.Error(err))
		return apperror.BackendLogic("Unexpected response from the recommendation service")
	}
	return nil
}

func transportFailure(err error) error {
	if apperror.IsTimeout(err) {
		return apperror.Transport(0, "", "recommendation service timed out", err)
	}
	return apperror.Transport(0, "", "recommendation service is unreachable", err)
}

// backendMessage extracts the "error" field from a failure body, if it is JSON.
func backendMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
