package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyfix/middleware"
	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/chat"
	"handyfix/services/intelligence"
	"handyfix/utils"
)

// ChatHandler exposes chat sessions over HTTP.
type ChatHandler struct {
	Sessions        *chat.Manager
	Transcriber     intelligence.Transcriber
	DefaultLocation string
	MaxImageBytes   int64
}

func NewChatHandler(sessions *chat.Manager, transcriber intelligence.Transcriber, defaultLocation string, maxImageBytes int64) *ChatHandler {
	return &ChatHandler{
		Sessions:        sessions,
		Transcriber:     transcriber,
		DefaultLocation: defaultLocation,
		MaxImageBytes:   maxImageBytes,
	}
}

// CreateSessionHandler starts a conversation seeded with the greeting.
func (h *ChatHandler) CreateSessionHandler(c *gin.Context) {
	logger := getLogger(c)

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Invalid create session request", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = middleware.LocationFromContext(c)
	}
	if location == "" {
		location = h.DefaultLocation
	}

	s := h.Sessions.Create(location)
	c.JSON(http.StatusCreated, sessionResponse(s, 0))
}

// GetSessionHandler returns the full transcript.
func (h *ChatHandler) GetSessionHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	resp := models.ChatResponse{
		SessionID: s.ID,
		Messages:  messageViews(s.Orchestrator.Messages()),
		Composing: s.Orchestrator.Composing(),
	}
	c.JSON(http.StatusOK, resp)
}

// EndSessionHandler closes a conversation.
func (h *ChatHandler) EndSessionHandler(c *gin.Context) {
	if !h.Sessions.End(c.Param("id")) {
		AbortWithError(c, ErrSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendMessageHandler sends a typed user message.
func (h *ChatHandler) SendMessageHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req models.ChatTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Message text is required", err.Error())
		return
	}

	from := s.Orchestrator.MessageCount()
	err := s.Orchestrator.SendText(c.Request.Context(), req.Text)
	h.respond(c, s, from, err)
}

// UploadImageHandler analyses a photo of the issue sent as multipart field "image".
func (h *ChatHandler) UploadImageHandler(c *gin.Context) {
	logger := getLogger(c)
	s, ok := h.session(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "image file is required", err.Error())
		return
	}
	defer file.Close()

	if h.MaxImageBytes > 0 && header.Size > h.MaxImageBytes {
		utils.JSONError(c, http.StatusRequestEntityTooLarge, "image is too large", header.Filename)
		return
	}
	data, err := readLimited(file, h.MaxImageBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			utils.JSONError(c, http.StatusRequestEntityTooLarge, "image is too large", header.Filename)
			return
		}
		utils.JSONError(c, http.StatusBadRequest, "failed to read image", err.Error())
		return
	}
	if len(data) > 0 {
		if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
			utils.JSONError(c, http.StatusUnsupportedMediaType, "unsupported image type", mt.String())
			return
		}
	}
	logger.Debug("Image received", zap.String("sessionID", s.ID), zap.String("name", header.Filename), zap.Int("bytes", len(data)))

	from := s.Orchestrator.MessageCount()
	err = s.Orchestrator.AnalyzeImage(c.Request.Context(), data, header.Filename)
	h.respond(c, s, from, err)
}

// TapSuggestionHandler fires the action of a suggestion offered earlier.
func (h *ChatHandler) TapSuggestionHandler(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	from := s.Orchestrator.MessageCount()
	err := s.Orchestrator.TapSuggestion(c.Request.Context(), c.Param("suggestionID"))
	h.respond(c, s, from, err)
}

func (h *ChatHandler) session(c *gin.Context) (*chat.Session, bool) {
	s, ok := h.Sessions.Get(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrSessionNotFound)
		return nil, false
	}
	return s, true
}

// respond writes the messages added since from plus drained notices. Classified failures
// still return the conversation state alongside their status.
func (h *ChatHandler) respond(c *gin.Context, s *chat.Session, from int, err error) {
	if err != nil {
		if _, classified := apperror.As(err); !classified {
			AbortWithError(c, err)
			return
		}
		getLogger(c).Warn("Chat call failed", zap.String("sessionID", s.ID), zap.Error(err))
	}
	c.JSON(StatusFor(err), sessionResponse(s, from))
}

func sessionResponse(s *chat.Session, from int) models.ChatResponse {
	notices, results := s.Inbox.Drain()
	return models.ChatResponse{
		SessionID: s.ID,
		Messages:  messageViews(s.Orchestrator.MessagesSince(from)),
		Composing: s.Orchestrator.Composing(),
		Notices:   notices,
		Results:   results,
	}
}

func messageViews(msgs []models.Message) []models.MessageView {
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.NewMessageView(m))
	}
	return views
}

var errTooLarge = errors.New("payload too large")

// readLimited reads r fully, failing with errTooLarge past limit bytes. A non-positive
// limit reads everything.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}
