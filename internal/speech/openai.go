package speech

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/rbright/vmemo/internal/transcript"
	"github.com/rbright/vmemo/internal/wav"
)

// OpenAIConfig configures the Whisper provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Model defaults to whisper-1.
	Model string
	// Language is an ISO-639-1 hint such as "en"; empty lets the service detect it.
	Language string
	// Phrases are passed as a spelling prompt; boosts are ignored.
	Phrases []Phrase
	Timeout time.Duration
	Logger  *slog.Logger
}

// OpenAI transcribes recordings through the audio/transcriptions endpoint.
type OpenAI struct {
	cfg    OpenAIConfig
	client *openai.Client
}

// NewOpenAI builds a Whisper provider.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.Whisper1
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return &OpenAI{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

// Transcribe implements Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, audio wav.Audio) Result {
	if audio.Empty() {
		return NoSpeech()
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.Model,
		FilePath: "memo.wav",
		Reader:   bytes.NewReader(audio.Bytes()),
		Language: languageHint(o.cfg.Language),
		Prompt:   phrasePrompt(o.cfg.Phrases),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		if o.cfg.Logger != nil {
			o.cfg.Logger.Warn("whisper transcription failed", "error", err.Error())
		}
		return classifyOpenAIError(err)
	}

	text := transcript.Assemble([]string{resp.Text}, transcript.Options{})
	if text == "" {
		return NoSpeech()
	}
	return Text(text)
}

// classifyOpenAIError maps API failures to tagged results.
func classifyOpenAIError(err error) Result {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusBadRequest {
			return InvalidInput(apiErr.Message)
		}
		return ServiceError(apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return ServiceError(reqErr.Err.Error())
	}
	return ServiceError(err.Error())
}

// languageHint trims BCP-47 region suffixes ("en-US" -> "en").
func languageHint(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

// phrasePrompt lists vocabulary as a comma-separated prompt.
func phrasePrompt(phrases []Phrase) string {
	parts := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if text := strings.TrimSpace(phrase.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}
