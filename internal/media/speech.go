package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultSpeechTimeout = 60 * time.Second

// SpeechConfig configures speech transcription and synthesis.
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Timeout time.Duration
}

// SpeechClient turns spoken questions into text and tutor replies
// into audio using the OpenAI audio endpoints.
type SpeechClient struct {
	client  *openai.Client
	model   string
	voice   string
	timeout time.Duration
}

// NewSpeechClient builds a client with whisper-1 and alloy defaults.
func NewSpeechClient(cfg SpeechConfig) (*SpeechClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("media: speech api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSpeechTimeout
	}

	return &SpeechClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		voice:   voice,
		timeout: timeout,
	}, nil
}

// Transcribe converts an audio recording into text.
func (c *SpeechClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("media: transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders text to speech and writes the audio to outPath.
func (c *SpeechClient) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("media: nothing to synthesize")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(c.voice),
	})
	if err != nil {
		return fmt.Errorf("media: synthesize speech: %w", err)
	}
	defer resp.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("media: create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		return fmt.Errorf("media: write audio file: %w", err)
	}
	return nil
}
