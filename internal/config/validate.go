package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rbright/vmemo/internal/summary"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Audio.Backend {
	case BackendPulse, BackendPortAudio:
	default:
		return nil, fmt.Errorf("audio.backend must be one of: pulse, portaudio")
	}
	if err := cfg.AudioFormat().Validate(); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	if cfg.Audio.Channels > 2 {
		return nil, fmt.Errorf("audio.channels must be 1 or 2")
	}
	if cfg.Audio.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("audio.frames_per_buffer must be > 0")
	}
	if cfg.Audio.Backend == BackendPortAudio && cfg.Audio.BitDepth == 24 {
		return nil, fmt.Errorf("audio.bit_depth=24 is not supported by audio.backend=portaudio")
	}

	if cfg.Recording.MaxSeconds < 0 {
		return nil, fmt.Errorf("recording.max_seconds must be >= 0")
	}
	if cfg.Recording.OnLimit != "stop" && cfg.Recording.OnLimit != "reject" {
		return nil, fmt.Errorf("recording.on_limit must be one of: stop, reject")
	}
	if cfg.Recording.PreallocSeconds < 0 {
		return nil, fmt.Errorf("recording.prealloc_seconds must be >= 0")
	}
	if cfg.Recording.MaxSeconds > 0 && cfg.Recording.PreallocSeconds > cfg.Recording.MaxSeconds {
		warnings = append(warnings, Warning{Message: "recording.prealloc_seconds exceeds recording.max_seconds; preallocation is capped at the limit"})
	}

	if cfg.Visual.RefreshHz <= 0 || cfg.Visual.RefreshHz > 240 {
		return nil, fmt.Errorf("visual.refresh_hz must be between 1 and 240")
	}
	if cfg.Visual.Window <= 0 {
		return nil, fmt.Errorf("visual.window must be > 0")
	}
	if cfg.Visual.Style != "bar" && cfg.Visual.Style != "waveform" {
		return nil, fmt.Errorf("visual.style must be one of: bar, waveform")
	}
	if cfg.Visual.Width <= 0 {
		return nil, fmt.Errorf("visual.width must be > 0")
	}

	switch cfg.Transcription.Provider {
	case ProviderGoogle:
		if cfg.Audio.BitDepth != 16 {
			return nil, fmt.Errorf("transcription.provider=google requires audio.bit_depth=16")
		}
	case ProviderOpenAI:
		if cfg.Transcription.CredentialsFile != "" {
			warnings = append(warnings, Warning{Message: "transcription.credentials_file is ignored when transcription.provider=openai"})
		}
	default:
		return nil, fmt.Errorf("transcription.provider must be one of: google, openai")
	}
	if strings.TrimSpace(cfg.Transcription.LanguageCode) == "" {
		return nil, fmt.Errorf("transcription.language_code must not be empty")
	}
	if cfg.Transcription.TimeoutMS < 0 {
		return nil, fmt.Errorf("transcription.timeout_ms must be >= 0")
	}
	if cfg.Transcription.Insecure && strings.TrimSpace(cfg.Transcription.Endpoint) == "" {
		return nil, fmt.Errorf("transcription.insecure requires transcription.endpoint")
	}

	if cfg.Summary.Enable {
		if strings.TrimSpace(cfg.Summary.Model) == "" {
			return nil, fmt.Errorf("summary.model must not be empty when summary.enable=true")
		}
		if strings.TrimSpace(cfg.Summary.APIKeyEnv) == "" {
			return nil, fmt.Errorf("summary.api_key_env must not be empty when summary.enable=true")
		}
	}
	if cfg.Summary.TopP < 0 || cfg.Summary.TopP > 1 {
		return nil, fmt.Errorf("summary.top_p must be between 0 and 1")
	}
	if cfg.Summary.Temperature < 0 || cfg.Summary.Temperature > 2 {
		return nil, fmt.Errorf("summary.temperature must be between 0 and 2")
	}
	if cfg.Summary.PresencePenalty < -2 || cfg.Summary.PresencePenalty > 2 {
		return nil, fmt.Errorf("summary.presence_penalty must be between -2 and 2")
	}
	if cfg.Summary.MinTokens < 0 || cfg.Summary.MaxTokens < 0 {
		return nil, fmt.Errorf("summary.min_tokens and summary.max_tokens must be >= 0")
	}
	if cfg.Summary.MaxTokens > 0 && cfg.Summary.MinTokens > cfg.Summary.MaxTokens {
		warnings = append(warnings, Warning{Message: "summary.min_tokens exceeds summary.max_tokens; min_tokens is used as the token budget"})
	}
	if cfg.Summary.TimeoutMS < 0 {
		return nil, fmt.Errorf("summary.timeout_ms must be >= 0")
	}
	if cfg.Summary.Prompt != "" {
		if _, err := summary.ParsePrompt(cfg.Summary.Prompt); err != nil {
			return nil, fmt.Errorf("summary.prompt: %w", err)
		}
	}

	switch cfg.Display.Backend {
	case DisplayTerminal, DisplayNone:
	case DisplayDesktop:
		if strings.TrimSpace(cfg.Display.DesktopAppName) == "" {
			return nil, fmt.Errorf("display.desktop_app_name must not be empty when display.backend=desktop")
		}
	default:
		return nil, fmt.Errorf("display.backend must be one of: terminal, desktop, none")
	}
	if cfg.Display.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("display.error_timeout_ms must be >= 0")
	}

	if cfg.Output.ClipboardCmd.Raw != "" && len(cfg.Output.ClipboardCmd.Argv) == 0 {
		return nil, fmt.Errorf("output.clipboard_cmd is configured but empty")
	}
	if len(cfg.Output.ClipboardCmd.Argv) > 0 && !cfg.Output.Clipboard {
		warnings = append(warnings, Warning{Message: "output.clipboard_cmd is set but output.clipboard=false"})
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic ASR phrase payloads.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
