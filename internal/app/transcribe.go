package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/output"
	"github.com/rbright/vmemo/internal/pipeline"
	"github.com/rbright/vmemo/internal/session"
	"github.com/rbright/vmemo/internal/speech"
	"github.com/rbright/vmemo/internal/summary"
	"github.com/rbright/vmemo/internal/wav"
)

// commandTranscribe runs an existing WAV file through transcription, summary, and output.
func (r Runner) commandTranscribe(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) int {
	recording, err := wav.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	transcriber, closers, err := pipeline.NewTranscriber(ctx, cfg, r.Getenv, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	result := transcriber.Transcribe(ctx, recording)
	logger.Info("file transcription finished",
		"path", path,
		"outcome", string(result.Outcome),
		"latency_ms", result.Latency.Milliseconds(),
		"audio_duration_ms", recording.Duration().Milliseconds(),
	)

	text := strings.TrimSpace(result.Text)
	switch {
	case result.Outcome == speech.OutcomeText && text != "":
	case result.Outcome == speech.OutcomeText, result.Outcome == speech.OutcomeNoSpeech:
		fmt.Fprintln(r.Stdout, speech.NoSpeechMessage)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: %s\n", result.Display())
		return 1
	}

	memo := session.Memo{Transcript: text}
	summarizer, err := pipeline.NewSummarizer(cfg.Summary, r.Getenv, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if summarizer != nil {
		s := summarizer.Summarize(ctx, text)
		logger.Info("file summary finished", "outcome", string(s.Outcome), "latency_ms", s.Latency.Milliseconds())
		switch s.Outcome {
		case summary.OutcomeText:
			memo.Summary = s.Text
		case summary.OutcomeServiceError:
			fmt.Fprintf(r.Stderr, "warning: summary unavailable; %s\n", s.Message)
		}
	}

	fmt.Fprintln(r.Stdout, output.Format(memo, true))

	if err := output.NewCommitter(cfg.Output, logger).Commit(ctx, memo); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
