package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio         *jsoncAudio         `json:"audio"`
	Recording     *jsoncRecording     `json:"recording"`
	Visual        *jsoncVisual        `json:"visual"`
	Transcription *jsoncTranscription `json:"transcription"`
	Summary       *jsoncSummary       `json:"summary"`
	Display       *jsoncDisplay       `json:"display"`
	Output        *jsoncOutput        `json:"output"`
	Vocab         *jsoncVocab         `json:"vocab"`
	Log           *jsoncLog           `json:"log"`
	Debug         *jsoncDebug         `json:"debug"`
}

type jsoncAudio struct {
	Backend         *string `json:"backend"`
	Input           *string `json:"input"`
	Fallback        *string `json:"fallback"`
	SampleRate      *int    `json:"sample_rate"`
	Channels        *int    `json:"channels"`
	BitDepth        *int    `json:"bit_depth"`
	FramesPerBuffer *int    `json:"frames_per_buffer"`
}

type jsoncRecording struct {
	MaxSeconds      *int    `json:"max_seconds"`
	OnLimit         *string `json:"on_limit"`
	PreallocSeconds *int    `json:"prealloc_seconds"`
}

type jsoncVisual struct {
	Enable    *bool   `json:"enable"`
	RefreshHz *int    `json:"refresh_hz"`
	Window    *int    `json:"window"`
	Style     *string `json:"style"`
	Width     *int    `json:"width"`
}

type jsoncTranscription struct {
	Provider             *string `json:"provider"`
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	CredentialsFile      *string `json:"credentials_file"`
	APIKeyEnv            *string `json:"api_key_env"`
	Endpoint             *string `json:"endpoint"`
	Insecure             *bool   `json:"insecure"`
	TimeoutMS            *int    `json:"timeout_ms"`
}

type jsoncSummary struct {
	Enable          *bool    `json:"enable"`
	Model           *string  `json:"model"`
	BaseURL         *string  `json:"base_url"`
	APIKeyEnv       *string  `json:"api_key_env"`
	Prompt          *string  `json:"prompt"`
	TopP            *float64 `json:"top_p"`
	Temperature     *float64 `json:"temperature"`
	PresencePenalty *float64 `json:"presence_penalty"`
	MinTokens       *int     `json:"min_tokens"`
	MaxTokens       *int     `json:"max_tokens"`
	TimeoutMS       *int     `json:"timeout_ms"`
}

type jsoncDisplay struct {
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncOutput struct {
	Clipboard      *bool   `json:"clipboard"`
	ClipboardCmd   *string `json:"clipboard_cmd"`
	IncludeSummary *bool   `json:"include_summary"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	AudioDump    *bool `json:"audio_dump"`
	ResponseDump *bool `json:"response_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	cfg.Vocab.Sets = cloneVocabSets(base.Vocab.Sets)
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Backend, a.Backend, true)
		setString(&cfg.Audio.Input, a.Input, false)
		setString(&cfg.Audio.Fallback, a.Fallback, false)
		setInt(&cfg.Audio.SampleRate, a.SampleRate)
		setInt(&cfg.Audio.Channels, a.Channels)
		setInt(&cfg.Audio.BitDepth, a.BitDepth)
		setInt(&cfg.Audio.FramesPerBuffer, a.FramesPerBuffer)
	}

	if r := payload.Recording; r != nil {
		setInt(&cfg.Recording.MaxSeconds, r.MaxSeconds)
		setString(&cfg.Recording.OnLimit, r.OnLimit, true)
		setInt(&cfg.Recording.PreallocSeconds, r.PreallocSeconds)
	}

	if v := payload.Visual; v != nil {
		setBool(&cfg.Visual.Enable, v.Enable)
		setInt(&cfg.Visual.RefreshHz, v.RefreshHz)
		setInt(&cfg.Visual.Window, v.Window)
		setString(&cfg.Visual.Style, v.Style, true)
		setInt(&cfg.Visual.Width, v.Width)
	}

	if t := payload.Transcription; t != nil {
		setString(&cfg.Transcription.Provider, t.Provider, true)
		setString(&cfg.Transcription.LanguageCode, t.LanguageCode, false)
		setString(&cfg.Transcription.Model, t.Model, false)
		setBool(&cfg.Transcription.AutomaticPunctuation, t.AutomaticPunctuation)
		setString(&cfg.Transcription.CredentialsFile, t.CredentialsFile, false)
		setString(&cfg.Transcription.APIKeyEnv, t.APIKeyEnv, false)
		setString(&cfg.Transcription.Endpoint, t.Endpoint, false)
		setBool(&cfg.Transcription.Insecure, t.Insecure)
		setInt(&cfg.Transcription.TimeoutMS, t.TimeoutMS)
	}

	if s := payload.Summary; s != nil {
		setBool(&cfg.Summary.Enable, s.Enable)
		setString(&cfg.Summary.Model, s.Model, false)
		setString(&cfg.Summary.BaseURL, s.BaseURL, false)
		setString(&cfg.Summary.APIKeyEnv, s.APIKeyEnv, false)
		if s.Prompt != nil {
			cfg.Summary.Prompt = *s.Prompt
		}
		setFloat(&cfg.Summary.TopP, s.TopP)
		setFloat(&cfg.Summary.Temperature, s.Temperature)
		setFloat(&cfg.Summary.PresencePenalty, s.PresencePenalty)
		setInt(&cfg.Summary.MinTokens, s.MinTokens)
		setInt(&cfg.Summary.MaxTokens, s.MaxTokens)
		setInt(&cfg.Summary.TimeoutMS, s.TimeoutMS)
	}

	if d := payload.Display; d != nil {
		setString(&cfg.Display.Backend, d.Backend, true)
		setString(&cfg.Display.DesktopAppName, d.DesktopAppName, false)
		setInt(&cfg.Display.ErrorTimeoutMS, d.ErrorTimeoutMS)
	}

	if o := payload.Output; o != nil {
		setBool(&cfg.Output.Clipboard, o.Clipboard)
		setBool(&cfg.Output.IncludeSummary, o.IncludeSummary)
		if o.ClipboardCmd != nil {
			raw := *o.ClipboardCmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid output.clipboard_cmd: %w", err)
			}
			cfg.Output.ClipboardCmd = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if payload.Vocab != nil {
		if payload.Vocab.Global != nil {
			cfg.Vocab.GlobalSets = make([]string, 0, len(*payload.Vocab.Global))
			for _, name := range *payload.Vocab.Global {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
			}
		}
		if payload.Vocab.MaxPhrases != nil {
			cfg.Vocab.MaxPhrases = *payload.Vocab.MaxPhrases
		}
		if payload.Vocab.Sets != nil {
			if cfg.Vocab.Sets == nil {
				cfg.Vocab.Sets = make(map[string]VocabSet)
			}
			for name, set := range payload.Vocab.Sets {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return nil, fmt.Errorf("vocab.sets contains an empty set name")
				}

				phrases := make([]string, 0, len(set.Phrases))
				phrases = append(phrases, set.Phrases...)

				entry := VocabSet{Name: trimmedName, Phrases: phrases}
				if set.Boost != nil {
					entry.Boost = *set.Boost
				}
				cfg.Vocab.Sets[trimmedName] = entry
			}
		}
	}

	if payload.Log != nil {
		setString(&cfg.Log.Level, payload.Log.Level, true)
	}

	if payload.Debug != nil {
		setBool(&cfg.Debug.EnableAudioDump, payload.Debug.AudioDump)
		setBool(&cfg.Debug.EnableResponseDump, payload.Debug.ResponseDump)
	}

	return warnings, nil
}

func setString(dst *string, v *string, lower bool) {
	if v == nil {
		return
	}
	s := strings.TrimSpace(*v)
	if lower {
		s = strings.ToLower(s)
	}
	*dst = s
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func cloneVocabSets(in map[string]VocabSet) map[string]VocabSet {
	out := make(map[string]VocabSet, len(in))
	for name, set := range in {
		out[name] = set
	}
	return out
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
