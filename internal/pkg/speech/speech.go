package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel = openai.SpeechModelGPT4oMiniTTS
	defaultVoice = openai.AudioSpeechNewParamsVoiceAlloy

	// The speech endpoint caps input at 4096 characters.
	maxInputLen = 4096
)

// ErrMissingAPIKey is returned when OPENAI_API_KEY was not configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

// Synthesizer turns digest text into spoken audio.
type Synthesizer struct {
	client *openai.Client
}

func New(apiKey string) *Synthesizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Synthesizer{client: &client}
}

// NewFromEnv builds a Synthesizer using the OPENAI_API_KEY env var.
func NewFromEnv() (*Synthesizer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	return New(apiKey), nil
}

// Synthesize returns MP3 audio for the given text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("Synthesizer is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	if utf8.RuneCountInString(text) > maxInputLen {
		text = string([]rune(text)[:maxInputLen])
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          defaultModel,
		Voice:          defaultVoice,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})

	if err != nil {
		return nil, fmt.Errorf("call OpenAI: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return audio, nil
}
