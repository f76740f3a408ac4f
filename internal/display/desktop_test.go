package display

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/vmemo/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDesktopReplacesStatusAndDismissesOnHide(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ " $* " == *" Notify "* ]]; then
  echo "u 7"
fi
`)

	cfg := config.Default().Display
	cfg.DesktopAppName = "vmemo-test"
	d := NewDesktop(cfg, nil)
	ctx := context.Background()

	d.ShowRecording(ctx)
	d.ShowTranscribing(ctx)
	d.ShowTranscript(ctx, "hello world")
	d.Hide(ctx)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "Notify susssasa{sv}i vmemo-test 0  Recording… press Enter to stop  0 0 300000")
	require.Contains(t, lines[1], "Notify susssasa{sv}i vmemo-test 7  Transcribing…  0 0 300000")
	require.Contains(t, lines[2], "Notify susssasa{sv}i vmemo-test 0  Transcript hello world 0 0 10000")
	require.Contains(t, lines[3], "CloseNotification u 7")
}

func TestDesktopShowErrorUsesDefaultTimeout(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
echo "u 3"
`)

	cfg := config.Default().Display
	cfg.ErrorTimeoutMS = 0
	d := NewDesktop(cfg, nil)
	d.ShowError(context.Background(), "")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "Speech recognition error  0 0 1200")
}

func TestDesktopNotifyRejectsMalformedResponse(t *testing.T) {
	installBusctlStub(t, `
echo "garbage"
`)

	_, err := desktopNotify(context.Background(), "vmemo", 0, "title", "", 1000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid response")
}

func TestDesktopHideWithoutNotificationSkipsBusctl(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	d := NewDesktop(config.Default().Display, nil)
	d.Hide(context.Background())

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
