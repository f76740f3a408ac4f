package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:         BackendPulse,
			Input:           "default",
			Fallback:        "default",
			SampleRate:      44100,
			Channels:        1,
			BitDepth:        16,
			FramesPerBuffer: 1024,
		},
		Recording: RecordingConfig{
			MaxSeconds:      60,
			OnLimit:         "stop",
			PreallocSeconds: 10,
		},
		Visual: VisualConfig{
			Enable:    true,
			RefreshHz: 30,
			Window:    100,
			Style:     "bar",
			Width:     40,
		},
		Transcription: TranscriptionConfig{
			Provider:             ProviderGoogle,
			LanguageCode:         "en-US",
			AutomaticPunctuation: true,
			TimeoutMS:            30000,
		},
		Summary: SummaryConfig{
			Enable:      true,
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			TopP:        1,
			Temperature: 0.3,
			MaxTokens:   256,
			TimeoutMS:   30000,
		},
		Display: DisplayConfig{
			Backend:        DisplayTerminal,
			DesktopAppName: "vmemo",
			ErrorTimeoutMS: 1600,
		},
		Output: OutputConfig{
			Clipboard:      false,
			IncludeSummary: true,
		},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Log:   LogConfig{Level: "info"},
		Debug: DebugConfig{},
	}
}
