package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AudioDump writes each encoded recording to the debug directory.
type AudioDump struct {
	Logger *slog.Logger
}

// WriteAudio stores data as a timestamped WAV file; failures are logged, never returned.
func (d AudioDump) WriteAudio(sessionID string, data []byte) {
	if len(data) == 0 {
		return
	}
	file, err := createDebugFile("audio-"+shortID(sessionID), "wav")
	if err != nil {
		d.logWarn("unable to create debug audio dump", err)
		return
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		d.logWarn("unable to write debug audio dump", err)
		return
	}
	if d.Logger != nil {
		d.Logger.Debug("debug audio dump written", "session_id", sessionID, "path", file.Name())
	}
}

func (d AudioDump) logWarn(message string, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.Warn(message, "error", err.Error())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "session"
	}
	return id
}

// createDebugFile creates timestamped debug artifacts under state/vmemo/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "vmemo", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

// resolveStateDir returns XDG_STATE_HOME fallback path for debug artifacts.
func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
