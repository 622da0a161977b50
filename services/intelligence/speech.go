package intelligence

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"handyfix/metrics"
	"handyfix/services/apperror"
)

type recognizer interface {
	recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	close() error
}

// SpeechTranscriber implements Transcriber with Google Cloud Speech-to-Text.
type SpeechTranscriber struct {
	credentialsFile string
	language        string
	timeout         time.Duration
	logger          *zap.Logger
	dial            func(ctx context.Context, credentialsFile string) (recognizer, error)

	mu  sync.Mutex
	rec recognizer
}

func NewSpeechTranscriber(credentialsFile, language string, timeout time.Duration, logger *zap.Logger) *SpeechTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en-US"
	}
	return &SpeechTranscriber{
		credentialsFile: credentialsFile,
		language:        language,
		timeout:         timeout,
		logger:          logger,
		dial:            dialSpeech,
	}
}

func dialSpeech(ctx context.Context, credentialsFile string) (recognizer, error) {
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech client: %w", err)
	}
	return &speechClient{client: client}, nil
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, clip AudioClip) (text string, err error) {
	if strings.TrimSpace(s.credentialsFile) == "" {
		return "", apperror.Configuration("speech credentials file is not set")
	}
	start := time.Now()
	defer func() { metrics.ObserveRemoteCall(metrics.CapabilitySpeech, start, err) }()

	rec, err := s.recognizerFor()
	if err != nil {
		return "", apperror.Classify(err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	language := clip.Language
	if language == "" {
		language = s.language
	}
	channels := clip.Channels
	if channels <= 0 {
		channels = 1
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   int32(clip.SampleRate),
			LanguageCode:      language,
			AudioChannelCount: int32(channels),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
		},
	}

	resp, err := rec.recognize(ctx, req)
	if err != nil {
		s.logger.Warn("Speech recognition failed", zap.Error(err))
		return "", recognitionFailure(err)
	}

	var transcript strings.Builder
	for _, result := range resp.GetResults() {
		// The first alternative is the most likely one.
		if alts := result.GetAlternatives(); len(alts) > 0 {
			transcript.WriteString(alts[0].GetTranscript())
			transcript.WriteString(" ")
		}
	}
	return strings.TrimSpace(transcript.String()), nil
}

func (s *SpeechTranscriber) recognizerFor() (recognizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		return s.rec, nil
	}
	rec, err := s.dial(context.Background(), s.credentialsFile)
	if err != nil {
		return nil, err
	}
	s.rec = rec
	return rec, nil
}

func (s *SpeechTranscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil
	}
	err := s.rec.close()
	s.rec = nil
	return err
}

type speechClient struct {
	client *speech.Client
}

func (c *speechClient) recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.client.Recognize(ctx, req)
}

func (c *speechClient) close() error {
	return c.client.Close()
}

// recognitionFailure maps a gRPC status onto the HTTP status of an equivalent REST failure.
func recognitionFailure(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return apperror.Classify(err)
	}
	msg := "speech recognition failed: " + st.Message()
	switch st.Code() {
	case codes.DeadlineExceeded:
		return apperror.Transport(http.StatusGatewayTimeout, "", "speech recognition timed out", fmt.Errorf("%w: %w", context.DeadlineExceeded, err))
	case codes.Canceled:
		return apperror.Transport(0, "", "speech recognition cancelled", fmt.Errorf("%w: %w", context.Canceled, err))
	case codes.Unauthenticated, codes.PermissionDenied:
		return apperror.Configuration("speech credentials were rejected: " + st.Message())
	case codes.InvalidArgument:
		return apperror.Transport(http.StatusBadRequest, "", msg, err)
	case codes.ResourceExhausted:
		return apperror.Transport(http.StatusTooManyRequests, "", msg, err)
	case codes.Unavailable:
		return apperror.Transport(http.StatusServiceUnavailable, "", msg, err)
	default:
		return apperror.Transport(http.StatusBadGateway, "", msg, err)
	}
}
