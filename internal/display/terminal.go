// Package display renders session status and memo results to the terminal or desktop notifications.
package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rbright/vmemo/internal/session"
)

const clearLine = "\r\x1b[2K"

// Terminal writes status lines and results to an output stream.
// Lines written while the level meter is active first clear the meter line.
type Terminal struct {
	out      io.Writer
	messages messages

	mu    sync.Mutex
	meter bool
}

// NewTerminal creates a terminal display writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, messages: messagesFromEnv()}
}

func (t *Terminal) ShowRecording(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLocked(t.messages.recording)
	t.meter = true
}

func (t *Terminal) ShowTranscribing(context.Context) {
	t.write(t.messages.transcribing)
}

func (t *Terminal) ShowSummarizing(context.Context) {
	t.write(t.messages.summarizing)
}

func (t *Terminal) ShowTranscript(_ context.Context, text string) {
	t.write(fmt.Sprintf("%s:\n%s", t.messages.transcript, text))
}

func (t *Terminal) ShowSummary(_ context.Context, text string) {
	t.write(fmt.Sprintf("%s:\n%s", t.messages.summary, text))
}

func (t *Terminal) ShowMessage(_ context.Context, text string) {
	t.write(text)
}

func (t *Terminal) ShowError(_ context.Context, text string) {
	if text == "" {
		text = t.messages.errorText
	}
	t.write("error: " + text)
}

func (t *Terminal) Cue(_ context.Context, cue session.Cue) {
	switch cue {
	case session.CueStop:
		t.write(t.messages.stopped)
	case session.CueCancel:
		t.write(t.messages.cancelled)
	}
}

// Hide clears a dangling meter line.
func (t *Terminal) Hide(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.meter {
		_, _ = io.WriteString(t.out, clearLine)
		t.meter = false
	}
}

func (t *Terminal) write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLocked(text)
}

func (t *Terminal) writeLocked(text string) {
	if t.meter {
		_, _ = io.WriteString(t.out, clearLine)
		t.meter = false
	}
	_, _ = io.WriteString(t.out, text+"\n")
}
