package intelligence

import (
	"context"

	"handyfix/models"
)

// SamplingParams are the generation knobs sent with every model call.
type SamplingParams struct {
	Temperature     float32
	MaxOutputTokens int32
}

// TextCompleter turns an ordered list of role-tagged turns into a reply. The last turn
// must be the user's.
type TextCompleter interface {
	Complete(ctx context.Context, turns []models.ContextTurn, params SamplingParams) (string, error)
}

// VisionDescriber answers an instruction about an image.
type VisionDescriber interface {
	Describe(ctx context.Context, image []byte, instruction string, params SamplingParams) (string, error)
}

// AudioClip is a mono LINEAR16 recording.
type AudioClip struct {
	Data       []byte
	SampleRate int
	Channels   int
	Language   string
}

// Transcriber converts a voice note to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip) (string, error)
}
