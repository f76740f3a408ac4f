// Package pipeline builds session collaborators (capture, transcription, summary, display) from config.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/vmemo/internal/audio"
	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/display"
	"github.com/rbright/vmemo/internal/output"
	"github.com/rbright/vmemo/internal/session"
	"github.com/rbright/vmemo/internal/speech"
	"github.com/rbright/vmemo/internal/summary"
	"github.com/rbright/vmemo/internal/visual"
	"github.com/rbright/vmemo/internal/wav"
)

// Deps carries process-level inputs that tests can replace.
type Deps struct {
	Logger *slog.Logger
	// Out receives terminal status lines and the level meter.
	Out io.Writer
	// Getenv resolves API keys; nil uses os.Getenv.
	Getenv func(string) string
	// Source overrides the configured capture backend.
	Source audio.Source
}

// Runtime owns the session options and the resources behind them.
type Runtime struct {
	Options session.Options

	closers []io.Closer
}

// Build assembles session options for cfg.
func Build(ctx context.Context, cfg config.Config, deps Deps) (*Runtime, error) {
	deps = deps.withDefaults()
	rt := &Runtime{}

	transcriber, closers, err := NewTranscriber(ctx, cfg, deps.Getenv, deps.Logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closers...)

	summarizer, err := NewSummarizer(cfg.Summary, deps.Getenv, deps.Logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	sink, err := NewVisual(cfg.Visual, deps.Out)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	source := deps.Source
	if source == nil {
		source = NewSource(cfg.Audio, deps.Logger)
	}

	rt.Options = session.Options{
		Format:      cfg.AudioFormat(),
		MaxDuration: cfg.Recording.MaxDuration(),
		OnLimit:     session.LimitPolicy(cfg.Recording.OnLimit),
		Prealloc:    cfg.Recording.Prealloc(),
		LevelWindow: cfg.Visual.Window,
		RefreshHz:   cfg.Visual.RefreshHz,
		Source:      source,
		Encoder:     wav.Encoder{},
		Transcriber: transcriber,
		Display:     NewDisplay(cfg.Display, deps.Out, deps.Logger),
		Visual:      sink,
		Commit:      output.NewCommitter(cfg.Output, deps.Logger),
		Logger:      deps.Logger,
	}
	if summarizer != nil {
		rt.Options.Summarizer = summarizer
	}
	if cfg.Debug.EnableAudioDump {
		rt.Options.AudioDump = AudioDump{Logger: deps.Logger}
	}
	return rt, nil
}

// Close releases provider connections and debug files.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	return d
}

// NewSource returns the configured capture backend, limited to one open stream.
func NewSource(cfg config.AudioConfig, logger *slog.Logger) audio.Source {
	switch cfg.Backend {
	case config.BackendPortAudio:
		name := strings.TrimSpace(cfg.Input)
		if name == "default" {
			name = ""
		}
		return audio.ProcessExclusive(&audio.PortAudioSource{
			DeviceName:      name,
			FramesPerBuffer: cfg.FramesPerBuffer,
			Logger:          logger,
		})
	default:
		return audio.ProcessExclusive(&audio.PulseSource{
			Input:           cfg.Input,
			Fallback:        cfg.Fallback,
			FramesPerBuffer: cfg.FramesPerBuffer,
			Logger:          logger,
		})
	}
}

// SpeechPhrases converts enabled vocab sets into provider phrases.
func SpeechPhrases(cfg config.Config) ([]speech.Phrase, error) {
	phrases, _, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, fmt.Errorf("build speech phrases: %w", err)
	}
	out := make([]speech.Phrase, 0, len(phrases))
	for _, phrase := range phrases {
		out = append(out, speech.Phrase{Text: phrase.Phrase, Boost: phrase.Boost})
	}
	return out, nil
}

// NewTranscriber builds the configured speech provider wrapped with latency timing.
// The returned closers must be closed once the provider is no longer used.
func NewTranscriber(ctx context.Context, cfg config.Config, getenv func(string) string, logger *slog.Logger) (speech.Transcriber, []io.Closer, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	phrases, err := SpeechPhrases(cfg)
	if err != nil {
		return nil, nil, err
	}

	var apiKey string
	if env := cfg.Transcription.APIKeyEnvName(); env != "" {
		apiKey = strings.TrimSpace(getenv(env))
	}

	switch cfg.Transcription.Provider {
	case config.ProviderOpenAI:
		if apiKey == "" {
			return nil, nil, fmt.Errorf("transcription.provider=openai requires %s to be set", cfg.Transcription.APIKeyEnvName())
		}
		provider := speech.NewOpenAI(speech.OpenAIConfig{
			APIKey:   apiKey,
			BaseURL:  cfg.Transcription.Endpoint,
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.LanguageCode,
			Phrases:  phrases,
			Timeout:  cfg.Transcription.Timeout(),
			Logger:   logger,
		})
		return speech.Timed(provider), nil, nil
	case config.ProviderGoogle:
		var closers []io.Closer
		var dump io.Writer
		if cfg.Debug.EnableResponseDump {
			file, err := createDebugFile("speech", "jsonl")
			if err != nil {
				return nil, nil, err
			}
			dump = file
			closers = append(closers, file)
		}
		provider, err := speech.NewGoogle(ctx, speech.GoogleConfig{
			LanguageCode:          cfg.Transcription.LanguageCode,
			Model:                 cfg.Transcription.Model,
			AutomaticPunctuation:  cfg.Transcription.AutomaticPunctuation,
			Phrases:               phrases,
			CredentialsFile:       cfg.Transcription.CredentialsFile,
			APIKey:                apiKey,
			Endpoint:              cfg.Transcription.Endpoint,
			Insecure:              cfg.Transcription.Insecure,
			DialTimeout:           3 * time.Second,
			Timeout:               cfg.Transcription.Timeout(),
			DebugResponseSinkJSON: dump,
			Logger:                logger,
		})
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		closers = append(closers, provider)
		return speech.Timed(provider), closers, nil
	default:
		return nil, nil, fmt.Errorf("unsupported transcription provider %q", cfg.Transcription.Provider)
	}
}

// NewSummarizer returns nil when summaries are disabled or no API key is available.
func NewSummarizer(cfg config.SummaryConfig, getenv func(string) string, logger *slog.Logger) (summary.Summarizer, error) {
	if !cfg.Enable {
		return nil, nil
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	apiKey := strings.TrimSpace(getenv(cfg.APIKeyEnv))
	if apiKey == "" {
		if logger != nil {
			logger.Warn("summary disabled; api key environment variable is not set", "env", cfg.APIKeyEnv)
		}
		return nil, nil
	}
	s, err := summary.NewOpenAI(summary.Options{
		APIKey:          apiKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		Prompt:          cfg.Prompt,
		TopP:            float32(cfg.TopP),
		Temperature:     float32(cfg.Temperature),
		PresencePenalty: float32(cfg.PresencePenalty),
		MinTokens:       cfg.MinTokens,
		MaxTokens:       cfg.MaxTokens,
		Timeout:         cfg.Timeout(),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	return s, nil
}

// NewDisplay returns the configured display; nil means no display.
func NewDisplay(cfg config.DisplayConfig, out io.Writer, logger *slog.Logger) session.Display {
	switch cfg.Backend {
	case config.DisplayNone:
		return nil
	case config.DisplayDesktop:
		return display.Multi{display.NewTerminal(out), display.NewDesktop(cfg, logger)}
	default:
		return display.NewTerminal(out)
	}
}

// NewVisual returns the live level renderer, or nil when disabled.
func NewVisual(cfg config.VisualConfig, out io.Writer) (visual.Sink, error) {
	if !cfg.Enable {
		return nil, nil
	}
	return visual.NewRenderer(visual.Style(cfg.Style), out, cfg.Width)
}
