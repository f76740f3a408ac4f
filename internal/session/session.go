// Package session coordinates memo lifecycle state, capture, and the transcription flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/vmemo/internal/audio"
	"github.com/rbright/vmemo/internal/fsm"
	"github.com/rbright/vmemo/internal/ipc"
	"github.com/rbright/vmemo/internal/recording"
	"github.com/rbright/vmemo/internal/speech"
	"github.com/rbright/vmemo/internal/summary"
	"github.com/rbright/vmemo/internal/visual"
	"github.com/rbright/vmemo/internal/wav"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

var (
	// ErrSessionActive is returned by Start when a session is already in progress.
	ErrSessionActive = errors.New("a memo session is already active")
	// ErrNoSource indicates the controller was built without an audio source.
	ErrNoSource = errors.New("no audio source configured")
	// ErrTranscriptionFailed wraps service and input errors reported by the transcriber.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// LimitPolicy decides what happens when a recording reaches its maximum length.
type LimitPolicy string

const (
	// LimitStop stops the session and transcribes what was captured.
	LimitStop LimitPolicy = "stop"
	// LimitReject keeps the session open but discards further audio.
	LimitReject LimitPolicy = "reject"
)

// Options wires a controller.
type Options struct {
	Format      audio.Format
	MaxDuration time.Duration
	OnLimit     LimitPolicy
	Prealloc    time.Duration
	LevelWindow int
	RefreshHz   int

	Source      audio.Source
	Encoder     wav.Encoder
	Transcriber speech.Transcriber
	// Summarizer is optional; nil skips summarization.
	Summarizer summary.Summarizer
	Display    Display
	// Visual receives live amplitude while recording; nil disables rendering.
	Visual    visual.Sink
	Commit    Committer
	AudioDump AudioSink
	Logger    *slog.Logger
}

// Result is the complete lifecycle output of one session.
type Result struct {
	SessionID     string
	State         fsm.State
	Transcript    speech.Result
	Summary       summary.Result
	Cancelled     bool
	Ignored       bool
	Truncated     bool
	Err           error
	BytesCaptured int64
	AudioDuration time.Duration
	DroppedFrames int64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	opts    Options
	logger  *slog.Logger
	display Display
	commit  Committer
	level   *audio.LevelMeter
	buffer  *recording.Buffer

	// lifecycle serializes Start with the hand-off half of Stop and Cancel.
	lifecycle sync.Mutex

	mu     sync.RWMutex
	state  fsm.State
	active *activeRecording

	actions chan action
}

type activeRecording struct {
	id        string
	startedAt time.Time
	stream    audio.Stream

	stopVisual context.CancelFunc
	visualDone chan struct{}
	limitOnce  sync.Once
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(opts Options) *Controller {
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	if opts.OnLimit == "" {
		opts.OnLimit = LimitStop
	}
	if opts.Transcriber == nil {
		opts.Transcriber = speech.TranscriberFunc(func(context.Context, wav.Audio) speech.Result {
			return speech.ServiceError("transcription is not configured")
		})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	display := opts.Display
	if display == nil {
		display = noopDisplay{}
	}
	commit := opts.Commit
	if commit == nil {
		commit = CommitFunc(func(context.Context, Memo) error { return nil })
	}

	return &Controller{
		opts:    opts,
		logger:  logger,
		display: display,
		commit:  commit,
		level:   audio.NewLevelMeter(opts.LevelWindow),
		buffer: recording.New(recording.Options{
			Format:      opts.Format,
			MaxDuration: opts.MaxDuration,
			Prealloc:    opts.Prealloc,
		}),
		state:   fsm.StateIdle,
		actions: make(chan action, 1),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Level exposes the live amplitude meter.
func (c *Controller) Level() *audio.LevelMeter {
	return c.level
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// take applies a recording-ending event and hands over the active recording atomically.
func (c *Controller) take(event fsm.Event) (*activeRecording, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != fsm.StateRecording || c.active == nil {
		return nil, false
	}
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return nil, false
	}
	c.state = next
	rec := c.active
	c.active = nil
	return rec, true
}

// Start opens the capture stream and begins buffering. It does nothing but
// return ErrSessionActive when a session is already in progress.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if err := c.transition(fsm.EventStart); err != nil {
		return fmt.Errorf("%w (state %s)", ErrSessionActive, c.State())
	}
	c.drainActions()

	rec := &activeRecording{id: uuid.NewString(), startedAt: time.Now()}
	if c.opts.Source == nil {
		c.toErrorAndReset()
		return ErrNoSource
	}

	c.level.Reset()
	if err := c.buffer.Begin(); err != nil {
		c.toErrorAndReset()
		return err
	}

	stream, err := c.opts.Source.Open(ctx, c.opts.Format)
	if err == nil {
		rec.stream = stream
		err = stream.Start(c.frameHandler(rec))
		if err != nil {
			_ = stream.Close()
		}
	}
	if err != nil {
		c.discardBuffer()
		c.display.ShowError(ctx, startErrorMessage(err))
		c.toErrorAndReset()
		c.logger.Error("recording start failed", "session_id", rec.id, "error", err.Error())
		return fmt.Errorf("open audio stream: %w", err)
	}

	c.mu.Lock()
	c.active = rec
	c.mu.Unlock()

	c.display.ShowRecording(ctx)
	c.display.Cue(ctx, CueStart)
	c.startVisual(rec)
	c.logger.Info("recording started", "session_id", rec.id, "format", c.opts.Format.String())
	return nil
}

// frameHandler runs on the capture goroutine: meter, then buffer. It never blocks.
func (c *Controller) frameHandler(rec *activeRecording) audio.FrameHandler {
	return func(frame audio.Frame) {
		c.level.Observe(frame)
		if err := c.buffer.Append(frame); errors.Is(err, recording.ErrLimitReached) {
			rec.limitOnce.Do(func() { go c.limitReached(rec) })
		}
	}
}

func (c *Controller) limitReached(rec *activeRecording) {
	c.logger.Info("recording length limit reached", "session_id", rec.id, "policy", string(c.opts.OnLimit))
	if c.opts.OnLimit != LimitStop {
		return
	}
	// Holding the read lock keeps take from ending rec between the check and the send.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active != rec {
		return
	}
	select {
	case c.actions <- actionStop:
	default:
	}
}

func (c *Controller) startVisual(rec *activeRecording) {
	if c.opts.Visual == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rec.stopVisual = cancel
	rec.visualDone = make(chan struct{})
	driver := &visual.Driver{Level: c.level, Sink: c.opts.Visual, RefreshHz: c.opts.RefreshHz}
	go func() {
		defer close(rec.visualDone)
		driver.Run(ctx)
	}()
}

// halt drains and closes capture. No frame handler runs after it returns.
func (c *Controller) halt(rec *activeRecording) {
	if err := rec.stream.Stop(); err != nil {
		c.logger.Warn("audio stream stop failed", "session_id", rec.id, "error", err.Error())
	}
	if rec.stopVisual != nil {
		rec.stopVisual()
		<-rec.visualDone
	}
	if err := rec.stream.Close(); err != nil {
		c.logger.Warn("audio stream close failed", "session_id", rec.id, "error", err.Error())
	}
}

// Stop ends the recording, transcribes it, and optionally summarizes it.
// Outside the recording state it is a no-op and the result is marked Ignored.
func (c *Controller) Stop(ctx context.Context) Result {
	c.lifecycle.Lock()
	rec, ok := c.take(fsm.EventStop)
	c.lifecycle.Unlock()
	if !ok {
		return c.ignored()
	}
	return c.finish(ctx, rec)
}

// Cancel ends the recording and discards the audio. Outside the recording state it is a no-op.
func (c *Controller) Cancel(ctx context.Context) Result {
	c.lifecycle.Lock()
	rec, ok := c.take(fsm.EventCancel)
	c.lifecycle.Unlock()
	if !ok {
		return c.ignored()
	}

	c.halt(rec)
	result := Result{SessionID: rec.id, StartedAt: rec.startedAt, DroppedFrames: rec.stream.Stats().Dropped}
	result.BytesCaptured = int64(c.buffer.Len())
	c.discardBuffer()
	c.display.Cue(ctx, CueCancel)

	result.Cancelled = true
	result.State = c.State()
	result.FinishedAt = time.Now()
	c.logger.Info("recording cancelled", "session_id", rec.id, "bytes_captured", result.BytesCaptured)
	return result
}

func (c *Controller) finish(ctx context.Context, rec *activeRecording) Result {
	result := Result{SessionID: rec.id, StartedAt: rec.startedAt}

	c.halt(rec)
	c.display.Cue(ctx, CueStop)
	result.DroppedFrames = rec.stream.Stats().Dropped

	snapshot, err := c.buffer.Finalize()
	_ = c.buffer.Reset()
	if err != nil {
		return c.failed(ctx, result, err, "Recording failed")
	}
	result.BytesCaptured = int64(snapshot.Len())
	result.AudioDuration = snapshot.Duration()
	result.Truncated = snapshot.Truncated()

	encoded, err := c.opts.Encoder.Encode(snapshot.PCM(), snapshot.Format())
	if err != nil {
		return c.failed(ctx, result, fmt.Errorf("encode recording: %w", err), "Unable to encode recording")
	}
	if c.opts.AudioDump != nil && !encoded.Empty() {
		c.opts.AudioDump.WriteAudio(rec.id, encoded.Bytes())
	}

	if err := c.transition(fsm.EventTranscribe); err != nil {
		return c.failed(ctx, result, err, "")
	}
	c.display.ShowTranscribing(ctx)
	// Network stages run to completion once capture has stopped.
	netCtx := context.WithoutCancel(ctx)
	result.Transcript = c.opts.Transcriber.Transcribe(netCtx, encoded)
	c.logger.Info("transcription finished",
		"session_id", rec.id,
		"outcome", string(result.Transcript.Outcome),
		"latency_ms", result.Transcript.Latency.Milliseconds(),
		"bytes_captured", result.BytesCaptured,
	)

	text := strings.TrimSpace(result.Transcript.Text)
	switch {
	case result.Transcript.Outcome == speech.OutcomeText && text != "":
	case result.Transcript.Outcome == speech.OutcomeText, result.Transcript.Outcome == speech.OutcomeNoSpeech:
		result.Transcript = speech.Result{Outcome: speech.OutcomeNoSpeech, Latency: result.Transcript.Latency}
		result.Summary = summary.Result{Outcome: summary.OutcomeSkipped}
		c.display.ShowMessage(ctx, result.Transcript.Display())
		_ = c.transition(fsm.EventTranscribed)
		return c.done(result)
	default:
		c.display.ShowError(ctx, result.Transcript.Display())
		result.Summary = summary.Result{Outcome: summary.OutcomeSkipped}
		return c.failed(ctx, result, fmt.Errorf("%w: %s", ErrTranscriptionFailed, result.Transcript.Message), "")
	}

	c.display.ShowTranscript(ctx, text)
	if result.Truncated {
		c.display.ShowMessage(ctx, "Maximum recording length reached; the memo was truncated")
	}
	memo := Memo{SessionID: rec.id, Transcript: text}

	final := fsm.EventTranscribed
	if c.opts.Summarizer != nil {
		if err := c.transition(fsm.EventSummarize); err != nil {
			return c.failed(ctx, result, err, "")
		}
		c.display.ShowSummarizing(ctx)
		result.Summary = c.opts.Summarizer.Summarize(netCtx, text)
		c.logger.Info("summary finished",
			"session_id", rec.id,
			"outcome", string(result.Summary.Outcome),
			"latency_ms", result.Summary.Latency.Milliseconds(),
		)
		switch result.Summary.Outcome {
		case summary.OutcomeText:
			memo.Summary = result.Summary.Text
			c.display.ShowSummary(ctx, result.Summary.Text)
		case summary.OutcomeServiceError:
			c.display.ShowError(ctx, "Summary unavailable; "+result.Summary.Message)
		}
		final = fsm.EventSummarized
	} else {
		result.Summary = summary.Result{Outcome: summary.OutcomeSkipped}
	}

	if err := c.commit.Commit(netCtx, memo); err != nil {
		return c.failed(ctx, result, err, "Output dispatch failed")
	}
	c.display.Cue(ctx, CueComplete)

	if err := c.transition(final); err != nil {
		return c.failed(ctx, result, err, "")
	}
	return c.done(result)
}

func (c *Controller) done(result Result) Result {
	result.State = c.State()
	result.FinishedAt = time.Now()
	return result
}

func (c *Controller) failed(ctx context.Context, result Result, err error, message string) Result {
	if message != "" {
		c.display.ShowError(ctx, message)
	}
	c.toErrorAndReset()
	c.logger.Error("session failed", "session_id", result.SessionID, "error", err.Error())
	result.Err = err
	return c.done(result)
}

func (c *Controller) ignored() Result {
	now := time.Now()
	return Result{State: c.State(), Ignored: true, StartedAt: now, FinishedAt: now}
}

// discardBuffer returns the buffer to idle from any state.
func (c *Controller) discardBuffer() {
	if c.buffer.State() == recording.StateRecording {
		_, _ = c.buffer.Finalize()
	}
	_ = c.buffer.Reset()
}

func (c *Controller) drainActions() {
	for {
		select {
		case <-c.actions:
		default:
			return
		}
	}
}

// Run executes one owner lifecycle from start to stop/cancel/failure completion.
func (c *Controller) Run(ctx context.Context) Result {
	startedAt := time.Now()
	if err := c.Start(ctx); err != nil {
		return Result{State: c.State(), Err: err, StartedAt: startedAt, FinishedAt: time.Now()}
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.display.Hide(cleanupCtx)
	}()

	select {
	case <-ctx.Done():
		result := c.Cancel(context.Background())
		c.display.ShowError(context.Background(), "Cancelled")
		result.Cancelled = false
		result.Err = ctx.Err()
		return result
	case a := <-c.actions:
		switch a {
		case actionCancel:
			return c.Cancel(ctx)
		case actionStop:
			return c.Stop(ctx)
		default:
			result := c.Cancel(context.Background())
			result.Cancelled = false
			result.Err = fmt.Errorf("unknown action %d", a)
			return result
		}
	}
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.status()
	case ipc.CommandToggle:
		return c.requestStop("toggle")
	case ipc.CommandStop:
		return c.requestStop("stop")
	case ipc.CommandCancel:
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// status reports the current state, session, and most recent input level.
func (c *Controller) status() ipc.Response {
	c.mu.RLock()
	state := c.state
	var sessionID string
	if c.active != nil {
		sessionID = c.active.id
	}
	c.mu.RUnlock()

	resp := ipc.Response{OK: true, State: string(state), SessionID: sessionID, Message: "status"}
	if state == fsm.StateRecording {
		resp.Level, _ = c.level.Latest()
	}
	return resp
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop(source string) ipc.Response {
	state := c.State()
	if fsm.Busy(state) && state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	}
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestCancel enqueues a cancel action when state permits it.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	if fsm.Busy(state) && state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while transcribing"}
	}
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}

	select {
	case c.actions <- actionCancel:
		return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	}
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

func startErrorMessage(err error) string {
	if errors.Is(err, audio.ErrAlreadyRecording) {
		return "Another recording is already in progress"
	}
	if errors.Is(err, audio.ErrDeviceUnavailable) {
		return "Microphone unavailable"
	}
	return "Unable to start recording"
}
