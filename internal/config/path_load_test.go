package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "vmemo", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "vmemo", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "audio": {
    "backend": "portaudio",
    "input": "default",
  },
  "transcription": {
    "provider": "openai",
  },
  "summary": {
    "enable": false
  }
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, BackendPortAudio, loaded.Config.Audio.Backend)
	require.Equal(t, ProviderOpenAI, loaded.Config.Transcription.Provider)
	require.Equal(t, "OPENAI_API_KEY", loaded.Config.Transcription.APIKeyEnvName())
	require.False(t, loaded.Config.Summary.Enable)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadResolvesCredentialsBesideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "transcription": { "provider": "google", "credentials_file": "keys/sa.json" }
}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "keys", "sa.json"), loaded.Config.Transcription.CredentialsFile)

	require.NoError(t, os.WriteFile(path, []byte(`{
  "transcription": { "provider": "google", "credentials_file": "/etc/vmemo/sa.json" }
}`), 0o600))

	loaded, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "/etc/vmemo/sa.json", loaded.Config.Transcription.CredentialsFile)
}
