package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"handyfix/models"
	"handyfix/services/apperror"
	"handyfix/services/intelligence"
)

// EmptyDescriptionReply is shown when the vision model returns nothing usable.
const EmptyDescriptionReply = "I couldn't identify an issue in this photo. You can still pick an option below or describe the problem in your own words."

// ImageAnalysisPipeline turns an uploaded photo into an issue description and offers the
// follow-up suggestions.
type ImageAnalysisPipeline struct {
	state  *turnState
	vision intelligence.VisionDescriber
	issue  *IssueContext
	params intelligence.SamplingParams
	logger *zap.Logger
}

// Analyze describes image and records the result in the issue context. An empty payload
// is a cancelled selection and does nothing.
func (p *ImageAnalysisPipeline) Analyze(ctx context.Context, image []byte, name string) error {
	if len(image) == 0 {
		return nil
	}
	ctx, release, err := p.state.begin(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !p.state.append(models.Message{Origin: models.OriginUser, ImageBytes: image, ImageName: name}) {
		p.state.finish(nil)
		return ErrSessionClosed
	}

	desc, err := p.vision.Describe(ctx, image, intelligence.ImageDescriptionPrompt, p.params)
	if err != nil {
		err = apperror.Classify(err)
		p.state.fail(err)
		return err
	}
	desc = strings.TrimSpace(desc)
	if p.state.isClosed() {
		return ErrSessionClosed
	}
	p.issue.Record(desc)
	p.logger.Info("Image analysed", zap.String("image", name), zap.String("description", desc))

	text := desc
	if text == "" {
		text = EmptyDescriptionReply
	}
	reply := models.Message{Origin: models.OriginAssistant, Text: text, Suggestions: models.IssueSuggestions()}
	if !p.state.finish(&reply) {
		return ErrSessionClosed
	}
	return nil
}
