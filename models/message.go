package models

import "time"

// Origin tells which party authored a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Roles used in language-model context turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn. At least one of Text or ImageBytes is set.
type Message struct {
	ID          string       `json:"id"`
	Text        string       `json:"text,omitempty"`
	Origin      Origin       `json:"origin"`
	Timestamp   time.Time    `json:"timestamp"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	ImageBytes  []byte       `json:"-"`
	ImageName   string       `json:"imageName,omitempty"`
}

func (m Message) HasText() bool {
	return m.Text != ""
}

func (m Message) HasImage() bool {
	return len(m.ImageBytes) > 0
}

// Valid reports whether the message carries text or an image.
func (m Message) Valid() bool {
	return m.HasText() || m.HasImage()
}

// Role maps the origin to a language-model role.
func (m Message) Role() string {
	if m.Origin == OriginAssistant {
		return RoleAssistant
	}
	return RoleUser
}

// Clone returns a deep copy so image bytes and suggestions are never shared.
func (m Message) Clone() Message {
	out := m
	if m.ImageBytes != nil {
		out.ImageBytes = append([]byte(nil), m.ImageBytes...)
	}
	if m.Suggestions != nil {
		out.Suggestions = append([]Suggestion(nil), m.Suggestions...)
	}
	return out
}

// ContextTurn is a role-tagged message sent to the text-completion capability.
type ContextTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
