package session

import "context"

// Memo is the text produced by one successful session.
type Memo struct {
	SessionID  string
	Transcript string
	Summary    string
}

// Committer delivers a finished memo, for example to the clipboard.
type Committer interface {
	Commit(context.Context, Memo) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, Memo) error

func (f CommitFunc) Commit(ctx context.Context, memo Memo) error {
	return f(ctx, memo)
}

// AudioSink receives the encoded recording before transcription.
type AudioSink interface {
	WriteAudio(sessionID string, data []byte)
}
