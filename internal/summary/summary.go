// Package summary condenses transcripts with an OpenAI-compatible chat model.
package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultPrompt is used when no prompt template is configured.
const DefaultPrompt = "Summarize the following voice memo in a few concise sentences. " +
	"Keep names, numbers, and action items.\n\n{{.Transcript}}"

// Outcome tags a summary result.
type Outcome string

const (
	OutcomeText         Outcome = "text"
	OutcomeServiceError Outcome = "service_error"
	OutcomeSkipped      Outcome = "skipped"
)

// Result is the tagged outcome of one summarization request.
type Result struct {
	Outcome Outcome
	Text    string
	Message string
	Latency time.Duration
}

// OK reports whether the result carries text.
func (r Result) OK() bool {
	return r.Outcome == OutcomeText
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, text string) Result
}

// Options configures the chat request.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// Prompt is a text/template rendered with {{.Transcript}}.
	Prompt          string
	TopP            float32
	Temperature     float32
	PresencePenalty float32
	// MinTokens raises the completion budget to at least this many tokens.
	MinTokens int
	MaxTokens int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// OpenAI streams a chat completion and concatenates the deltas.
type OpenAI struct {
	opts   Options
	prompt *template.Template
	client *openai.Client
}

// NewOpenAI validates the prompt template and builds the client.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = openai.GPT4oMini
	}
	promptText := opts.Prompt
	if strings.TrimSpace(promptText) == "" {
		promptText = DefaultPrompt
	}
	prompt, err := ParsePrompt(promptText)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return &OpenAI{opts: opts, prompt: prompt, client: openai.NewClientWithConfig(clientCfg)}, nil
}

// ParsePrompt compiles and trial-renders a prompt template.
func ParsePrompt(text string) (*template.Template, error) {
	prompt, err := template.New("summary").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse summary prompt: %w", err)
	}
	if err := prompt.Execute(io.Discard, promptData{}); err != nil {
		return nil, fmt.Errorf("render summary prompt: %w", err)
	}
	return prompt, nil
}

type promptData struct {
	Transcript string
}

// Summarize implements Summarizer.
func (o *OpenAI) Summarize(ctx context.Context, text string) Result {
	started := time.Now()
	result := o.summarize(ctx, text)
	if result.Outcome != OutcomeSkipped {
		result.Latency = time.Since(started)
	}
	return result
}

func (o *OpenAI) summarize(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Outcome: OutcomeSkipped}
	}

	var rendered bytes.Buffer
	if err := o.prompt.Execute(&rendered, promptData{Transcript: text}); err != nil {
		return Result{Outcome: OutcomeServiceError, Message: err.Error()}
	}

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, o.request(rendered.String()))
	if err != nil {
		return o.failed(err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return o.failed(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		out.WriteString(resp.Choices[0].Delta.Content)
	}

	summary := strings.TrimSpace(out.String())
	if summary == "" {
		return Result{Outcome: OutcomeServiceError, Message: "model returned an empty summary"}
	}
	return Result{Outcome: OutcomeText, Text: summary}
}

func (o *OpenAI) request(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		TopP:            o.opts.TopP,
		Temperature:     requestTemperature(o.opts.Temperature),
		PresencePenalty: o.opts.PresencePenalty,
		MaxTokens:       tokenBudget(o.opts.MinTokens, o.opts.MaxTokens),
	}
}

func (o *OpenAI) failed(err error) Result {
	if o.opts.Logger != nil {
		o.opts.Logger.Warn("summary request failed", "error", err.Error())
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return Result{Outcome: OutcomeServiceError, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil {
		return Result{Outcome: OutcomeServiceError, Message: reqErr.Err.Error()}
	}
	return Result{Outcome: OutcomeServiceError, Message: err.Error()}
}

// requestTemperature keeps an explicit zero on the wire; go-openai omits a zero Temperature.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// tokenBudget returns the max_tokens value; zero leaves it to the service default.
func tokenBudget(minTokens, maxTokens int) int {
	if maxTokens > 0 && minTokens > maxTokens {
		return minTokens
	}
	return maxTokens
}
