package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ppiont/socratex/internal/chat"
	"github.com/ppiont/socratex/internal/config"
	"github.com/ppiont/socratex/internal/kv"
	"github.com/ppiont/socratex/internal/llm"
	"github.com/ppiont/socratex/internal/media"
	"github.com/ppiont/socratex/internal/prompt"
	"github.com/ppiont/socratex/internal/tui"
)

const version = "v0.1.0"

var errUnsupportedProvider = errors.New("unsupported provider")

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "socratex: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "socratex",
		Short: "socratex is a terminal math tutor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}

			logger, closeLog, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctrl, closeStore, err := buildController(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			app := tui.NewApp(tui.AppConfig{
				Version:    version,
				ModelName:  cfg.Provider.Model,
				ThemeName:  cfg.TUI.Theme,
				Controller: ctrl,
			})

			program := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.AddCommand(newSessionsCmd(&configPath))
	cmd.AddCommand(newOCRCmd(&configPath))
	cmd.AddCommand(newTranscribeCmd(&configPath))
	cmd.AddCommand(newSpeakCmd(&configPath))
	return cmd
}

// newSessionsCmd lists saved sessions grouped by recency.
func newSessionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions grouped by recency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(*configPath))
			if err != nil {
				return err
			}

			backend, err := buildBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			store := chat.NewStore(backend, log.New(os.Stderr))
			sessions := store.ListAll()
			if len(sessions) == 0 {
				cmd.Println("No saved sessions.")
				return nil
			}

			for _, group := range chat.GroupByRecency(sessions, time.Now()) {
				cmd.Println(string(group.Bucket))
				for _, sess := range group.Sessions {
					cmd.Printf("  %s  %s  (%d messages)\n", sess.ID, sess.Title, len(sess.Messages))
				}
			}
			return nil
		},
	}
}

// newOCRCmd reads a math problem out of an image.
func newOCRCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract a math problem from an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(*configPath))
			if err != nil {
				return err
			}
			if cfg.Media.OCREndpoint == "" {
				return errors.New("media.ocr_endpoint is not configured")
			}

			part, err := media.CaptureAttachment(args[0])
			if err != nil {
				return err
			}

			client, err := media.NewOCRClient(media.OCRConfig{
				Endpoint: cfg.Media.OCREndpoint,
				Timeout:  cfg.OCRTimeout(),
				Logger:   log.New(os.Stderr),
			})
			if err != nil {
				return err
			}

			result, err := client.Recognize(cmd.Context(), part)
			if err != nil {
				return err
			}
			cmd.Println(result.Prompt())
			return nil
		},
	}
}

// newTranscribeCmd converts a spoken question into text.
func newTranscribeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Transcribe a spoken question to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(*configPath))
			if err != nil {
				return err
			}

			client, err := buildSpeechClient(cfg)
			if err != nil {
				return err
			}
			text, err := client.Transcribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(text)
			return nil
		},
	}
}

// newSpeakCmd renders text to an audio file.
func newSpeakCmd(configPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text to speech",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(*configPath))
			if err != nil {
				return err
			}

			client, err := buildSpeechClient(cfg)
			if err != nil {
				return err
			}
			if err := client.Synthesize(cmd.Context(), strings.Join(args, " "), outPath); err != nil {
				return err
			}
			cmd.Println("wrote " + outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "reply.mp3", "Output audio file")
	return cmd
}

// buildController assembles the session engine from configuration.
func buildController(cfg config.Config, logger *log.Logger) (*chat.Controller, func(), error) {
	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	builder, err := buildPromptBuilder(cfg)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	ctrl, err := chat.NewController(chat.Config{
		Provider:     provider,
		Store:        chat.NewStore(backend, logger),
		Logger:       logger,
		Model:        cfg.Provider.Model,
		MaxTokens:    cfg.Provider.MaxTokens,
		Temperature:  cfg.Provider.Temperature,
		SystemPrompt: builder.BuildSystem,
	})
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	return ctrl, func() { _ = backend.Close() }, nil
}

func buildBackend(cfg config.Config) (kv.Store, error) {
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return kv.NewSQLiteStore(cfg.SessionDBPath())
	default:
		return kv.NewFileStore(cfg.SessionFileDir())
	}
}

func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Name)) {
	case "", config.ProviderAnthropic:
		if strings.TrimSpace(cfg.Provider.APIKey) == "" {
			return nil, llm.ErrMissingAPIKey
		}
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:  cfg.Provider.APIKey,
			BaseURL: cfg.Provider.BaseURL,
		}), nil
	case config.ProviderMock:
		return &llm.MockProvider{Events: []llm.Event{
			{Type: llm.EventStart},
			{Type: llm.EventTextDelta, TextDelta: "This is the mock tutor. Configure an API key to talk to a real model."},
			{Type: llm.EventDone, Done: &llm.DonePayload{Reason: llm.StopReasonStop}},
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedProvider, cfg.Provider.Name)
	}
}

func buildPromptBuilder(cfg config.Config) (*prompt.Builder, error) {
	if path := strings.TrimSpace(cfg.Tutor.PersonaPath); path != "" {
		return prompt.Load(path)
	}
	return prompt.Default(), nil
}

func buildSpeechClient(cfg config.Config) (*media.SpeechClient, error) {
	return media.NewSpeechClient(media.SpeechConfig{
		APIKey:  cfg.Media.SpeechAPIKey,
		BaseURL: cfg.Media.SpeechBaseURL,
		Model:   cfg.Media.SpeechModel,
		Voice:   cfg.Media.SpeechVoice,
	})
}

// buildLogger writes structured logs to a file so log lines never
// corrupt the alt-screen TUI.
func buildLogger(cfg config.Config) (*log.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath()), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.NewWithOptions(file, log.Options{ReportTimestamp: true})
	return logger, func() { _ = file.Close() }, nil
}
