package models

import "time"

// CreateSessionRequest starts a chat session.
type CreateSessionRequest struct {
	Location string `json:"location,omitempty"`
}

// ChatTextRequest is the payload of a typed (or transcribed) user message.
type ChatTextRequest struct {
	Text string `json:"text" binding:"required"`
}

// RecommendRequest is the wire body of the recommendation backend's search endpoint.
type RecommendRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Location   string `json:"location,omitempty"`
}

// RecommendResponse is the wire response of the recommendation backend's search endpoint.
type RecommendResponse struct {
	Success bool                   `json:"success"`
	Query   string                 `json:"query,omitempty"`
	Workers []WorkerRecommendation `json:"workers,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// AnalyzeDescriptionRequest asks the backend for workers matching an issue description.
type AnalyzeDescriptionRequest struct {
	Description string `json:"description" binding:"required"`
	Location    string `json:"location,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

// IssueAnalysis is the backend's answer to an AnalyzeDescriptionRequest.
type IssueAnalysis struct {
	Success             bool            `json:"success"`
	AnalyzedDescription string          `json:"analyzed_description"`
	RecommendedWorkers  []WorkerSummary `json:"recommended_workers"`
	TotalFound          int             `json:"total_found"`
	Error               string          `json:"error,omitempty"`
}

// BackendHealth is the recommendation backend's health payload.
type BackendHealth struct {
	OK      bool   `json:"ok"`
	MLReady bool   `json:"ml_ready"`
	Error   string `json:"error,omitempty"`
}

// Notice is a user-visible notification produced while handling a chat call.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResultsMode tells the client how to present a results hand-off.
type ResultsMode string

const (
	ResultsRanked  ResultsMode = "ranked"
	ResultsKeyword ResultsMode = "keyword"
)

// ResultsHandoff is what the chat hands to the results view: either ranked workers or
// a query the view should search for on its own.
type ResultsHandoff struct {
	Query   string                 `json:"query"`
	Mode    ResultsMode            `json:"mode"`
	Workers []WorkerRecommendation `json:"workers,omitempty"`
}

// MessageView is the JSON shape of a message; image bytes are never echoed back.
type MessageView struct {
	ID          string       `json:"id"`
	Origin      Origin       `json:"origin"`
	Text        string       `json:"text,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	HasImage    bool         `json:"hasImage"`
	ImageName   string       `json:"imageName,omitempty"`
	ImageSize   int          `json:"imageSize,omitempty"`
}

func NewMessageView(m Message) MessageView {
	return MessageView{
		ID:          m.ID,
		Origin:      m.Origin,
		Text:        m.Text,
		Timestamp:   m.Timestamp,
		Suggestions: m.Suggestions,
		HasImage:    m.HasImage(),
		ImageName:   m.ImageName,
		ImageSize:   len(m.ImageBytes),
	}
}

// ChatResponse is returned by every chat endpoint.
type ChatResponse struct {
	SessionID string          `json:"sessionId"`
	Messages  []MessageView   `json:"messages"`
	Composing bool            `json:"composing"`
	Notices   []Notice        `json:"notices,omitempty"`
	Results   *ResultsHandoff `json:"results,omitempty"`
}
