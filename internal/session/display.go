package session

import "context"

// Cue is a fire-and-forget lifecycle signal.
type Cue string

const (
	CueStart    Cue = "start"
	CueStop     Cue = "stop"
	CueComplete Cue = "complete"
	CueCancel   Cue = "cancel"
)

// Display is the session-facing surface for status text and results.
type Display interface {
	ShowRecording(context.Context)
	ShowTranscribing(context.Context)
	ShowSummarizing(context.Context)
	ShowTranscript(context.Context, string)
	ShowSummary(context.Context, string)
	ShowMessage(context.Context, string)
	ShowError(context.Context, string)
	Cue(context.Context, Cue)
	Hide(context.Context)
}

// noopDisplay preserves session flow when no display is wired.
type noopDisplay struct{}

func (noopDisplay) ShowRecording(context.Context)          {}
func (noopDisplay) ShowTranscribing(context.Context)       {}
func (noopDisplay) ShowSummarizing(context.Context)        {}
func (noopDisplay) ShowTranscript(context.Context, string) {}
func (noopDisplay) ShowSummary(context.Context, string)    {}
func (noopDisplay) ShowMessage(context.Context, string)    {}
func (noopDisplay) ShowError(context.Context, string)      {}
func (noopDisplay) Cue(context.Context, Cue)               {}
func (noopDisplay) Hide(context.Context)                   {}
