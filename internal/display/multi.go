package display

import (
	"context"

	"github.com/rbright/vmemo/internal/session"
)

// Multi fans every call out to each display in order.
type Multi []session.Display

func (m Multi) ShowRecording(ctx context.Context) {
	for _, d := range m {
		d.ShowRecording(ctx)
	}
}

func (m Multi) ShowTranscribing(ctx context.Context) {
	for _, d := range m {
		d.ShowTranscribing(ctx)
	}
}

func (m Multi) ShowSummarizing(ctx context.Context) {
	for _, d := range m {
		d.ShowSummarizing(ctx)
	}
}

func (m Multi) ShowTranscript(ctx context.Context, text string) {
	for _, d := range m {
		d.ShowTranscript(ctx, text)
	}
}

func (m Multi) ShowSummary(ctx context.Context, text string) {
	for _, d := range m {
		d.ShowSummary(ctx, text)
	}
}

func (m Multi) ShowMessage(ctx context.Context, text string) {
	for _, d := range m {
		d.ShowMessage(ctx, text)
	}
}

func (m Multi) ShowError(ctx context.Context, text string) {
	for _, d := range m {
		d.ShowError(ctx, text)
	}
}

func (m Multi) Cue(ctx context.Context, cue session.Cue) {
	for _, d := range m {
		d.Cue(ctx, cue)
	}
}

func (m Multi) Hide(ctx context.Context) {
	for _, d := range m {
		d.Hide(ctx)
	}
}
