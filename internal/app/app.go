// Package app dispatches CLI commands to recording owners, IPC forwarding, and diagnostics.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/vmemo/internal/audio"
	"github.com/rbright/vmemo/internal/cli"
	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/doctor"
	"github.com/rbright/vmemo/internal/fsm"
	"github.com/rbright/vmemo/internal/ipc"
	"github.com/rbright/vmemo/internal/logging"
	"github.com/rbright/vmemo/internal/output"
	"github.com/rbright/vmemo/internal/pipeline"
	"github.com/rbright/vmemo/internal/session"
	"github.com/rbright/vmemo/internal/version"
)

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Getenv resolves provider API keys; nil uses os.Getenv.
	Getenv func(string) string
	// Source overrides the configured capture backend.
	Source audio.Source
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("vmemo"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("vmemo"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := logRuntime.SetLevel(cfgLoaded.Config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "error", err.Error())
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	if speechPlan, _, err := config.BuildSpeechPhrases(cfgLoaded.Config); err == nil {
		logger.Debug("speech context plan", "phrase_count", len(speechPlan), "phrases", speechPlan)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx, cfgLoaded.Config.Audio)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded.Config, logger)
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, logger)
	case cli.CommandTranscribe:
		return r.commandTranscribe(ctx, cfgLoaded.Config, parsed.File, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context, cfg config.AudioConfig) int {
	var (
		devices []audio.Device
		err     error
	)
	if cfg.Backend == config.BackendPortAudio {
		devices, err = audio.ListPortAudioDevices()
	} else {
		devices, err = audio.ListDevices(ctx)
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		line := resp.State
		if resp.SessionID != "" {
			line += " session=" + resp.SessionID
		}
		if resp.State == string(fsm.StateRecording) {
			line += fmt.Sprintf(" level=%.2f", resp.Level)
		}
		fmt.Fprintln(r.Stdout, line)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active vmemo session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle)
	if handled {
		return r.printForwarded(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandToggle)
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	return r.runOwner(ctx, cfg, logger, listener, socketPath, nil)
}

func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if r.Stdin != nil && cfg.Display.Backend != config.DisplayNone {
		fmt.Fprintln(r.Stdout, "Press Enter to stop recording.")
	}
	return r.runOwner(ctx, cfg, logger, listener, socketPath, r.Stdin)
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// runOwner records one session while serving IPC commands on listener.
// A newline on stdin requests a stop when stdin is non-nil.
func (r Runner) runOwner(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	listener net.Listener,
	socketPath string,
	stdin io.Reader,
) int {
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := pipeline.Build(ctx, cfg, pipeline.Deps{
		Logger: logger,
		Out:    r.Stdout,
		Getenv: r.Getenv,
		Source: r.Source,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build session failed", "error", err.Error())
		return 1
	}
	defer func() { _ = rt.Close() }()

	controller := session.NewController(rt.Options)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()
	if stdin != nil {
		go stopOnEnter(serverCtx, stdin, controller)
	}

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)
	return r.reportResult(cfg, result)
}

// reportResult prints the memo when no display already showed it.
func (r Runner) reportResult(cfg config.Config, result session.Result) int {
	quiet := cfg.Display.Backend != config.DisplayNone

	if result.Cancelled {
		if !quiet {
			fmt.Fprintln(r.Stdout, "cancelled")
		}
		return 0
	}
	if errors.Is(result.Err, context.Canceled) {
		fmt.Fprintln(r.Stderr, "interrupted; recording discarded")
		return 130
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if quiet {
		return 0
	}
	if !result.Transcript.OK() {
		fmt.Fprintln(r.Stdout, result.Transcript.Display())
		return 0
	}
	memo := session.Memo{
		SessionID:  result.SessionID,
		Transcript: strings.TrimSpace(result.Transcript.Text),
	}
	if result.Summary.OK() {
		memo.Summary = result.Summary.Text
	}
	fmt.Fprintln(r.Stdout, output.Format(memo, cfg.Output.IncludeSummary))
	return 0
}

// stopOnEnter requests a stop for each line read until the owner accepts one.
// Lines read before capture starts are retried until the session is recording.
func stopOnEnter(ctx context.Context, in io.Reader, handler ipc.Handler) {
	reader := bufio.NewReader(in)
	for {
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}
		for {
			resp := handler.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
			if resp.OK || resp.State != string(fsm.StateIdle) {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"session_id", result.SessionID,
		"state", result.State,
		"cancelled", result.Cancelled,
		"truncated", result.Truncated,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_duration_ms", result.AudioDuration.Milliseconds(),
		"bytes_captured", result.BytesCaptured,
		"dropped_frames", result.DroppedFrames,
		"transcript_outcome", string(result.Transcript.Outcome),
		"transcript_length", len(result.Transcript.Text),
		"transcription_latency_ms", result.Transcript.Latency.Milliseconds(),
		"summary_outcome", string(result.Summary.Outcome),
		"summary_latency_ms", result.Summary.Latency.Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
