// Package output delivers finished memos to the clipboard.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/session"
)

var writeSystemClipboard = clipboard.WriteAll

// Committer copies memo text to the clipboard when output.clipboard is enabled.
type Committer struct {
	config config.OutputConfig
	logger *slog.Logger
}

// NewCommitter constructs a memo committer from output config.
func NewCommitter(cfg config.OutputConfig, logger *slog.Logger) *Committer {
	return &Committer{config: cfg, logger: logger}
}

// Commit writes the formatted memo through clipboard_cmd or the system clipboard.
func (c *Committer) Commit(ctx context.Context, memo session.Memo) error {
	if !c.config.Clipboard {
		return nil
	}
	text := Format(memo, c.config.IncludeSummary)
	if text == "" {
		return nil
	}

	if len(c.config.ClipboardCmd.Argv) > 0 {
		clipboardCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := runCommandWithInput(clipboardCtx, c.config.ClipboardCmd.Argv, text); err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
	} else if err := writeSystemClipboard(text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("memo copied to clipboard", "session_id", memo.SessionID, "chars", len(text))
	}
	return nil
}

// Format renders memo text, appending the summary when requested and present.
func Format(memo session.Memo, includeSummary bool) string {
	transcript := strings.TrimSpace(memo.Transcript)
	summary := strings.TrimSpace(memo.Summary)
	if !includeSummary || summary == "" {
		return transcript
	}
	if transcript == "" {
		return summary
	}
	return transcript + "\n\nSummary:\n" + summary
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
