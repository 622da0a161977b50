package intelligence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	genai "github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"handyfix/metrics"
	"handyfix/models"
	"handyfix/services/apperror"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	TextModel   string
	VisionModel string
	Timeout     time.Duration
}

// generationRequest is one model call, independent of the SDK's session types.
type generationRequest struct {
	Model   string
	System  string
	History []*genai.Content
	Parts   []genai.Part
	Params  SamplingParams
}

type contentBackend interface {
	Generate(ctx context.Context, req generationRequest) (*genai.GenerateContentResponse, error)
	Close() error
}

type dialFunc func(ctx context.Context, apiKey string) (contentBackend, error)

// GeminiClient implements TextCompleter and VisionDescriber on top of the Gemini API.
// The SDK client is created on first use, after the credential has been validated.
type GeminiClient struct {
	cfg    GeminiConfig
	logger *zap.Logger
	dial   dialFunc

	mu      sync.Mutex
	backend contentBackend
}

func NewGeminiClient(cfg GeminiConfig, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TextModel == "" {
		cfg.TextModel = "gemini-1.5-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.TextModel
	}
	return &GeminiClient{cfg: cfg, logger: logger, dial: dialGenai}
}

func dialGenai(ctx context.Context, apiKey string) (contentBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &genaiBackend{client: client}, nil
}

// Complete sends the system turns as the system instruction, earlier turns as chat
// history and the final user turn as the new message.
func (g *GeminiClient) Complete(ctx context.Context, turns []models.ContextTurn, params SamplingParams) (string, error) {
	if err := ValidateAPIKey(g.cfg.APIKey); err != nil {
		return "", err
	}
	system, history, last, err := splitTurns(turns)
	if err != nil {
		return "", err
	}
	text, err := g.generate(ctx, metrics.CapabilityText, generationRequest{
		Model:   g.cfg.TextModel,
		System:  system,
		History: history,
		Parts:   []genai.Part{genai.Text(last)},
		Params:  params,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperror.BackendLogic("The assistant returned an empty reply")
	}
	return text, nil
}

// Describe sends the instruction and the image as a two-part message.
func (g *GeminiClient) Describe(ctx context.Context, image []byte, instruction string, params SamplingParams) (string, error) {
	if err := ValidateAPIKey(g.cfg.APIKey); err != nil {
		return "", err
	}
	return g.generate(ctx, metrics.CapabilityVision, generationRequest{
		Model:  g.cfg.VisionModel,
		Parts:  []genai.Part{genai.Text(instruction), genai.ImageData(imageFormat(image), image)},
		Params: params,
	})
}

func (g *GeminiClient) generate(ctx context.Context, capability string, req generationRequest) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall(capability, start, err) }()

	backend, err := g.backendFor()
	if err != nil {
		return "", apperror.Classify(err)
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := backend.Generate(ctx, req)
	if err != nil {
		g.logger.Warn("Gemini call failed", zap.String("capability", capability), zap.String("model", req.Model), zap.Error(err))
		return "", classifyGeminiError(err)
	}
	return responseText(resp)
}

func (g *GeminiClient) backendFor() (contentBackend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backend != nil {
		return g.backend, nil
	}
	b, err := g.dial(context.Background(), g.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	g.backend = b
	return b, nil
}

// Close releases the underlying SDK client, if one was created.
func (g *GeminiClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backend == nil {
		return nil
	}
	err := g.backend.Close()
	g.backend = nil
	return err
}

func splitTurns(turns []models.ContextTurn) (string, []*genai.Content, string, error) {
	if len(turns) == 0 || turns[len(turns)-1].Role != models.RoleUser {
		return "", nil, "", apperror.BackendLogic("conversation must end with a user turn")
	}

	var system []string
	var history []*genai.Content
	for _, t := range turns[:len(turns)-1] {
		if t.Role == models.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		// Consecutive turns from the same side are merged; the API expects alternation.
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(t.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	// History has to open with a user turn; the seeded greeting is a model turn.
	if len(history) > 0 && history[0].Role == "model" {
		history = append([]*genai.Content{{Role: "user", Parts: []genai.Part{genai.Text("Hello")}}}, history...)
	}
	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperror.BackendLogic("The assistant returned no answer")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}

func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return apperror.Transport(gerr.Code, gerr.Body, msg, err)
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return apperror.BackendLogic("The assistant could not answer this request")
	}
	return apperror.Classify(err)
}

// imageFormat returns the subtype passed to genai.ImageData, e.g. "png".
func imageFormat(image []byte) string {
	mt := mimetype.Detect(image).String()
	if format, ok := strings.CutPrefix(mt, "image/"); ok {
		return format
	}
	return "jpeg"
}

type genaiBackend struct {
	client *genai.Client
}

func (b *genaiBackend) Generate(ctx context.Context, req generationRequest) (*genai.GenerateContentResponse, error) {
	model := b.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Params.Temperature)
	if req.Params.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.Params.MaxOutputTokens)
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	cs := model.StartChat()
	cs.History = req.History
	return cs.SendMessage(ctx, req.Parts...)
}

func (b *genaiBackend) Close() error {
	return b.client.Close()
}
