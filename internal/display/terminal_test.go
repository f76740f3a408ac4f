package display

import (
	"bytes"
	"context"
	"testing"

	"github.com/rbright/vmemo/internal/session"
	"github.com/stretchr/testify/require"
)

func TestTerminalWritesStatusAndResults(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)
	ctx := context.Background()

	term.ShowTranscribing(ctx)
	term.ShowTranscript(ctx, "Buy milk.")
	term.ShowSummarizing(ctx)
	term.ShowSummary(ctx, "Groceries")
	term.ShowError(ctx, "")
	term.Cue(ctx, session.CueComplete)

	require.Equal(t,
		"Transcribing…\nTranscript:\nBuy milk.\nSummarizing…\nSummary:\nGroceries\nerror: Speech recognition error\n",
		out.String(),
	)
}

func TestTerminalClearsMeterLineBeforeNextLine(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)
	ctx := context.Background()

	term.ShowRecording(ctx)
	out.WriteString("\r[###   ]")
	term.Cue(ctx, session.CueStop)
	term.Hide(ctx)

	require.Equal(t,
		"Recording… press Enter to stop\n\r[###   ]"+clearLine+"Recording stopped\n",
		out.String(),
	)
}

func TestTerminalHideClearsDanglingMeter(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)

	term.ShowRecording(context.Background())
	term.Hide(context.Background())
	term.Hide(context.Background())

	require.Equal(t, "Recording… press Enter to stop\n"+clearLine, out.String())
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewTerminal(&a), NewTerminal(&b)}

	m.ShowMessage(context.Background(), "hello")
	m.Cue(context.Background(), session.CueCancel)

	require.Equal(t, "hello\nRecording cancelled\n", a.String())
	require.Equal(t, a.String(), b.String())
}
