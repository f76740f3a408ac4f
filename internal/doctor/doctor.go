// Package doctor runs runtime readiness diagnostics for config, audio, providers, and output tools.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/vmemo/internal/audio"
	"github.com/rbright/vmemo/internal/config"
	"github.com/rbright/vmemo/internal/speech"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkAudio(cfg.Config.Audio))
	checks = append(checks, checkTranscription(cfg.Config)...)

	if cfg.Config.Summary.Enable {
		summaryKey := checkEnv(cfg.Config.Summary.APIKeyEnv, nonEmpty,
			"summary API key is set",
			fmt.Sprintf("%s is empty; set it or disable summary.enable", cfg.Config.Summary.APIKeyEnv))
		checks = append(checks, summaryKey)
		if summaryKey.Pass {
			checks = append(checks, checkOpenAIModels("summary.endpoint", cfg.Config.Summary.BaseURL, os.Getenv(cfg.Config.Summary.APIKeyEnv)))
		}
	}

	if cfg.Config.Display.Backend == config.DisplayDesktop {
		checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
	}

	if cfg.Config.Output.Clipboard {
		if len(cfg.Config.Output.ClipboardCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.Config.Output.ClipboardCmd.Argv, "clipboard_cmd"))
		} else {
			checks = append(checks, checkSystemClipboard())
		}
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func nonEmpty(v string) bool {
	return strings.TrimSpace(v) != ""
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkSystemClipboard reports whether a clipboard utility is available.
func checkSystemClipboard() Check {
	if clipboard.Unsupported {
		return Check{Name: "clipboard", Pass: false, Message: "no clipboard utility found (install wl-clipboard, xclip, or xsel, or set output.clipboard_cmd)"}
	}
	return Check{Name: "clipboard", Pass: true, Message: "system clipboard available"}
}

// checkAudio resolves the configured input for the selected backend.
func checkAudio(cfg config.AudioConfig) Check {
	if cfg.Backend == config.BackendPortAudio {
		devices, err := audio.ListPortAudioDevices()
		if err != nil {
			return Check{Name: "audio.device", Pass: false, Message: err.Error()}
		}
		for _, device := range devices {
			if (cfg.Input == "default" && device.Default) || strings.EqualFold(device.ID, cfg.Input) {
				return Check{Name: "audio.device", Pass: true, Message: fmt.Sprintf("selected %q via %s", device.ID, device.Description)}
			}
		}
		return Check{Name: "audio.device", Pass: false, Message: "no matching portaudio input device"}
	}
	return checkAudioSelection(cfg)
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkTranscription validates provider credentials and reachability.
func checkTranscription(cfg config.Config) []Check {
	t := cfg.Transcription
	switch t.Provider {
	case config.ProviderOpenAI:
		env := t.APIKeyEnvName()
		key := checkEnv(env, nonEmpty, "transcription API key is set", fmt.Sprintf("%s is empty", env))
		if !key.Pass {
			return []Check{key}
		}
		return []Check{key, checkOpenAIModels("transcription.endpoint", t.Endpoint, os.Getenv(env))}
	default:
		return []Check{checkGoogleCredentials(t), checkGoogleClient(t)}
	}
}

// checkGoogleCredentials reports which credential source the speech client will use.
func checkGoogleCredentials(t config.TranscriptionConfig) Check {
	const name = "transcription.credentials"
	switch {
	case t.Insecure:
		return Check{Name: name, Pass: true, Message: "insecure endpoint; credentials not required"}
	case t.APIKeyEnvName() != "":
		env := t.APIKeyEnvName()
		if nonEmpty(os.Getenv(env)) {
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("API key from %s", env)}
		}
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is empty", env)}
	case strings.TrimSpace(t.CredentialsFile) != "":
		return checkFile(name, t.CredentialsFile)
	case nonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")):
		return checkFile(name, os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return Check{Name: name, Pass: false, Message: "no credentials configured"}
		}
		return checkFile(name, home+"/.config/gcloud/application_default_credentials.json")
	}
}

func checkFile(name string, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("credentials file unavailable: %v", err)}
	}
	if info.IsDir() {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("credentials path %q is a directory", path)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("using %s", path)}
}

// checkGoogleClient constructs the speech client; insecure endpoints are dialed until ready.
func checkGoogleClient(t config.TranscriptionConfig) Check {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var apiKey string
	if env := t.APIKeyEnvName(); env != "" {
		apiKey = os.Getenv(env)
	}
	client, err := speech.NewGoogle(ctx, speech.GoogleConfig{
		LanguageCode:    t.LanguageCode,
		CredentialsFile: t.CredentialsFile,
		APIKey:          apiKey,
		Endpoint:        t.Endpoint,
		Insecure:        t.Insecure,
		DialTimeout:     2 * time.Second,
	})
	if err != nil {
		return Check{Name: "transcription.client", Pass: false, Message: err.Error()}
	}
	_ = client.Close()

	target := "speech.googleapis.com"
	if strings.TrimSpace(t.Endpoint) != "" {
		target = t.Endpoint
	}
	return Check{Name: "transcription.client", Pass: true, Message: fmt.Sprintf("client ready for %s", target)}
}

// checkOpenAIModels probes the models listing of an OpenAI-compatible endpoint.
func checkOpenAIModels(name string, baseURL string, apiKey string) Check {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	url := strings.TrimRight(base, "/") + "/models"
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", base)}
}
