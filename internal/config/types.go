// Package config resolves, parses, validates, and defaults vmemo configuration.
package config

import "strings"

// Config is the fully materialized runtime configuration used by vmemo.
type Config struct {
	Audio         AudioConfig
	Recording     RecordingConfig
	Visual        VisualConfig
	Transcription TranscriptionConfig
	Summary       SummaryConfig
	Display       DisplayConfig
	Output        OutputConfig
	Vocab         VocabConfig
	Log           LogConfig
	Debug         DebugConfig
}

// AudioConfig controls the capture backend, device selection, and PCM format.
type AudioConfig struct {
	Backend         string
	Input           string
	Fallback        string
	SampleRate      int
	Channels        int
	BitDepth        int
	FramesPerBuffer int
}

// RecordingConfig controls buffer sizing and the maximum session length.
type RecordingConfig struct {
	MaxSeconds      int
	OnLimit         string
	PreallocSeconds int
}

// VisualConfig controls the live amplitude renderer.
type VisualConfig struct {
	Enable    bool
	RefreshHz int
	Window    int
	Style     string
	Width     int
}

// TranscriptionConfig selects and parameterizes the speech provider.
type TranscriptionConfig struct {
	Provider             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	CredentialsFile      string
	APIKeyEnv            string
	Endpoint             string
	Insecure             bool
	TimeoutMS            int
}

// APIKeyEnvName returns the environment variable holding the provider key.
func (t TranscriptionConfig) APIKeyEnvName() string {
	if env := strings.TrimSpace(t.APIKeyEnv); env != "" {
		return env
	}
	if t.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}

// SummaryConfig controls the optional chat-model summary.
type SummaryConfig struct {
	Enable          bool
	Model           string
	BaseURL         string
	APIKeyEnv       string
	Prompt          string
	TopP            float64
	Temperature     float64
	PresencePenalty float64
	MinTokens       int
	MaxTokens       int
	TimeoutMS       int
}

// DisplayConfig selects where status and results are shown.
type DisplayConfig struct {
	Backend        string
	DesktopAppName string
	ErrorTimeoutMS int
}

// OutputConfig controls clipboard delivery of finished memos.
type OutputConfig struct {
	Clipboard      bool
	ClipboardCmd   CommandConfig
	IncludeSummary bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump    bool
	EnableResponseDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to speech providers.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

const (
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"

	ProviderGoogle = "google"
	ProviderOpenAI = "openai"

	DisplayTerminal = "terminal"
	DisplayDesktop  = "desktop"
	DisplayNone     = "none"
)
