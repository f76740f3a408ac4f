// Package speech turns encoded recordings into text through cloud recognizers.
package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/vmemo/internal/wav"
)

// Outcome tags a transcription result.
type Outcome string

const (
	OutcomeText         Outcome = "text"
	OutcomeNoSpeech     Outcome = "no_speech"
	OutcomeServiceError Outcome = "service_error"
	OutcomeInvalidInput Outcome = "invalid_input"
)

// NoSpeechMessage is shown when the recognizer returns nothing usable.
const NoSpeechMessage = "Could not understand audio"

// Result is the tagged outcome of one transcription request.
type Result struct {
	Outcome Outcome
	Text    string
	// Message carries the service or validation error for the error outcomes.
	Message string
	Latency time.Duration
}

// Text builds a successful result.
func Text(text string) Result {
	return Result{Outcome: OutcomeText, Text: text}
}

// NoSpeech builds the empty-transcript result.
func NoSpeech() Result {
	return Result{Outcome: OutcomeNoSpeech}
}

// ServiceError builds a result carrying the provider's message verbatim.
func ServiceError(message string) Result {
	return Result{Outcome: OutcomeServiceError, Message: message}
}

// InvalidInput builds a result for audio the provider cannot accept.
func InvalidInput(message string) Result {
	return Result{Outcome: OutcomeInvalidInput, Message: message}
}

// OK reports whether the result carries text.
func (r Result) OK() bool {
	return r.Outcome == OutcomeText
}

// Display is the user-facing line for the result.
func (r Result) Display() string {
	switch r.Outcome {
	case OutcomeText:
		return r.Text
	case OutcomeNoSpeech:
		return NoSpeechMessage
	case OutcomeServiceError:
		return fmt.Sprintf("Could not request results; %s", r.Message)
	case OutcomeInvalidInput:
		return fmt.Sprintf("Invalid audio; %s", r.Message)
	default:
		return r.Message
	}
}

// Transcriber submits one recording and reports a tagged result.
// Failures are reported as Results, never as Go errors.
type Transcriber interface {
	Transcribe(ctx context.Context, audio wav.Audio) Result
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(context.Context, wav.Audio) Result

func (f TranscriberFunc) Transcribe(ctx context.Context, audio wav.Audio) Result {
	return f(ctx, audio)
}

// Timed wraps t and records request latency on every result.
func Timed(t Transcriber) Transcriber {
	return TranscriberFunc(func(ctx context.Context, audio wav.Audio) Result {
		started := time.Now()
		result := t.Transcribe(ctx, audio)
		result.Latency = time.Since(started)
		return result
	})
}

// Phrase is one vocabulary hint with its recognition boost.
type Phrase struct {
	Text  string
	Boost float32
}
