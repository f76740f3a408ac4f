package display

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/session"
)

const (
	statusTimeoutMS = 300000
	resultTimeoutMS = 10000
)

// Desktop routes session status through freedesktop notifications.
// Status notifications replace each other; transcript and summary
// notifications are posted separately so Hide does not dismiss them.
type Desktop struct {
	appName        string
	errorTimeoutMS int
	logger         *slog.Logger
	messages       messages

	mu             sync.Mutex
	notificationID uint32
}

// NewDesktop creates a desktop notification display from config.
func NewDesktop(cfg config.DisplayConfig, logger *slog.Logger) *Desktop {
	appName := strings.TrimSpace(cfg.DesktopAppName)
	if appName == "" {
		appName = "vmemo"
	}
	return &Desktop{
		appName:        appName,
		errorTimeoutMS: cfg.ErrorTimeoutMS,
		logger:         logger,
		messages:       messagesFromEnv(),
	}
}

func (d *Desktop) ShowRecording(ctx context.Context) {
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, d.messages.recording, "", statusTimeoutMS)
	})
}

func (d *Desktop) ShowTranscribing(ctx context.Context) {
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, d.messages.transcribing, "", statusTimeoutMS)
	})
}

func (d *Desktop) ShowSummarizing(ctx context.Context) {
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, d.messages.summarizing, "", statusTimeoutMS)
	})
}

func (d *Desktop) ShowTranscript(ctx context.Context, text string) {
	d.run(ctx, func(ctx context.Context) error {
		_, err := desktopNotify(ctx, d.appName, 0, d.messages.transcript, text, resultTimeoutMS)
		return err
	})
}

func (d *Desktop) ShowSummary(ctx context.Context, text string) {
	d.run(ctx, func(ctx context.Context) error {
		_, err := desktopNotify(ctx, d.appName, 0, d.messages.summary, text, resultTimeoutMS)
		return err
	})
}

func (d *Desktop) ShowMessage(ctx context.Context, text string) {
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, text, "", d.errorTimeout())
	})
}

func (d *Desktop) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = d.messages.errorText
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyStatus(ctx, text, "", d.errorTimeout())
	})
}

// Cue dismisses the status notification on cancel; other cues have no desktop surface.
func (d *Desktop) Cue(ctx context.Context, cue session.Cue) {
	if cue == session.CueCancel {
		d.Hide(ctx)
	}
}

// Hide dismisses the active status notification.
func (d *Desktop) Hide(ctx context.Context) {
	d.run(ctx, d.dismiss)
}

func (d *Desktop) errorTimeout() int {
	if d.errorTimeoutMS <= 0 {
		return 1200
	}
	return d.errorTimeoutMS
}

// notifyStatus sends a replaceable notification and stores its ID.
func (d *Desktop) notifyStatus(ctx context.Context, summary string, body string, timeoutMS int) error {
	d.mu.Lock()
	replaceID := d.notificationID
	d.mu.Unlock()

	id, err := desktopNotify(ctx, d.appName, replaceID, summary, body, timeoutMS)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

// dismiss closes the current status notification ID when present.
func (d *Desktop) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification call with a bounded timeout.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("desktop notification failed", err)
	}
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
