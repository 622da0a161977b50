package handlers

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"handyfix/services/chat"
	"handyfix/services/intelligence"
	"handyfix/utils"
)

const (
	MaxDurationSeconds = 60              // 1 minute maximum
	MaxVoiceFileSize   = 5 * 1024 * 1024 // 5MB
	AllowedExtension   = ".wav"
)

var (
	errNotWave         = errors.New("not a RIFF/WAVE file")
	errUnsupportedWave = errors.New("only uncompressed 16-bit PCM audio is supported")
)

// waveFormat is the part of a WAV "fmt " chunk the recogniser needs.
type waveFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// parseWave walks the RIFF chunks of data and returns the format and the PCM samples.
func parseWave(data []byte) (*waveFormat, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, errNotWave
	}

	var format *waveFormat
	r := bytes.NewReader(data[12:])
	for {
		var id [4]byte
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			break
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, nil, fmt.Errorf("truncated %q chunk header: %w", id[:], err)
		}

		switch string(id[:]) {
		case "fmt ":
			if size < 16 {
				return nil, nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			var f waveFormat
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return nil, nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if _, err := r.Seek(int64(size-16), io.SeekCurrent); err != nil {
				return nil, nil, err
			}
			format = &f
		case "data":
			if format == nil {
				return nil, nil, errors.New("data chunk before fmt chunk")
			}
			if int64(size) > int64(r.Len()) {
				size = uint32(r.Len())
			}
			samples := make([]byte, size)
			if _, err := io.ReadFull(r, samples); err != nil {
				return nil, nil, fmt.Errorf("read data chunk: %w", err)
			}
			if format.AudioFormat != 1 || format.BitsPerSample != 16 {
				return nil, nil, errUnsupportedWave
			}
			return format, samples, nil
		default:
			if _, err := r.Seek(int64(size)+int64(size%2), io.SeekCurrent); err != nil {
				return nil, nil, err
			}
		}
	}
	return nil, nil, errors.New("no data chunk found")
}

// SendVoiceHandler transcribes a WAV voice note from multipart field "audio" and sends the
// transcript as the user's message.
func (h *ChatHandler) SendVoiceHandler(c *gin.Context) {
	logger := getLogger(c)
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.Transcriber == nil {
		utils.JSONError(c, http.StatusNotImplemented, "voice messages are not enabled", "")
		return
	}
	if s.Orchestrator.Composing() {
		AbortWithError(c, chat.ErrComposing)
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "audio file is required", err.Error())
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != AllowedExtension {
		utils.JSONError(c, http.StatusBadRequest, "invalid file type", fmt.Sprintf("expected %s, got %s", AllowedExtension, ext))
		return
	}

	data, err := readLimited(file, MaxVoiceFileSize)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			utils.JSONError(c, http.StatusRequestEntityTooLarge, "audio file is too large", header.Filename)
			return
		}
		utils.JSONError(c, http.StatusBadRequest, "failed to read audio file", err.Error())
		return
	}

	format, samples, err := parseWave(data)
	if err != nil {
		utils.JSONError(c, http.StatusUnsupportedMediaType, "invalid audio", err.Error())
		return
	}
	if format.ByteRate > 0 && len(samples)/int(format.ByteRate) > MaxDurationSeconds {
		utils.JSONError(c, http.StatusRequestEntityTooLarge, "audio is too long",
			fmt.Sprintf("maximum duration is %d seconds", MaxDurationSeconds))
		return
	}

	transcript, err := h.Transcriber.Transcribe(c.Request.Context(), intelligence.AudioClip{
		Data:       samples,
		SampleRate: int(format.SampleRate),
		Channels:   int(format.NumChannels),
		Language:   c.PostForm("language"),
	})
	if err != nil {
		logger.Warn("Voice transcription failed", zap.String("sessionID", s.ID), zap.Error(err))
		AbortWithError(c, err)
		return
	}
	if transcript == "" {
		utils.JSONError(c, http.StatusUnprocessableEntity, "Could not understand the voice message", "empty transcript")
		return
	}
	logger.Debug("Voice message transcribed", zap.String("sessionID", s.ID), zap.Int("chars", len(transcript)))

	from := s.Orchestrator.MessageCount()
	err = s.Orchestrator.SendText(c.Request.Context(), transcript)
	h.respond(c, s, from, err)
}
