package config

import (
	"strings"
	"testing"
)

func TestParseValidConfig(t *testing.T) {
	input := `
{
  // capture
  "audio": {"input": "Elgato", "sample_rate": 16000},
  "recording": {"max_seconds": 120},
  "vocab": {
    "global": ["core", "team"],
    "sets": {
      "core": {"boost": 14, "phrases": ["vmemo", "Hyprland"]},
      "team": {"boost": 18, "phrases": ["vmemo", "Whisper"]},
    },
  },
}
`

	cfg, warnings, err := Parse(input, Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Audio.Input != "Elgato" {
		t.Fatalf("unexpected audio.input: %s", cfg.Audio.Input)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("unexpected audio.sample_rate: %d", cfg.Audio.SampleRate)
	}
	if cfg.Recording.MaxSeconds != 120 {
		t.Fatalf("unexpected recording.max_seconds: %d", cfg.Recording.MaxSeconds)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected dedupe warning for repeated phrase")
	}

	phrases, _, err := BuildSpeechPhrases(cfg)
	if err != nil {
		t.Fatalf("BuildSpeechPhrases() error = %v", err)
	}
	if len(phrases) != 3 {
		t.Fatalf("expected 3 unique phrases, got %d", len(phrases))
	}

	for _, p := range phrases {
		if p.Phrase == "vmemo" && p.Boost != 18 {
			t.Fatalf("expected highest boost retained for vmemo; got %v", p.Boost)
		}
	}
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Recording.MaxSeconds != 60 {
		t.Fatalf("expected default max_seconds, got %d", cfg.Recording.MaxSeconds)
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	_, _, err := Parse(`audio.input = "Elgato"`, Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "JSONC object") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse(`{"foo": {"bar": 1}}`, Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseLineNumberOnError(t *testing.T) {
	_, _, err := Parse("{\n\n  \"audio\": nope\n}", Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}

func TestValidateMissingVocabSetReference(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"missing"}

	if _, err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing vocab set")
	}
}

func TestValidateMaxPhraseLimit(t *testing.T) {
	cfg := Default()
	cfg.Vocab.MaxPhrases = 1
	cfg.Vocab.GlobalSets = []string{"team"}
	cfg.Vocab.Sets["team"] = VocabSet{
		Name:    "team",
		Boost:   10,
		Phrases: []string{"one", "two"},
	}

	_, err := Validate(cfg)
	if err == nil {
		t.Fatal("expected max phrase limit error")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseCommandArgvQuoted(t *testing.T) {
	cfg, _, err := Parse(`{"output": {"clipboard": true, "clipboard_cmd": "mycmd --name 'hello world'"}}`, Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := strings.Join(cfg.Output.ClipboardCmd.Argv, "|")
	want := "mycmd|--name|hello world"
	if got != want {
		t.Fatalf("unexpected argv parse: got %q want %q", got, want)
	}
}

func TestParseSummaryPrompt(t *testing.T) {
	cfg, _, err := Parse(`{"summary": {"prompt": "Bullet points for: {{.Transcript}}"}}`, Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Summary.Prompt != "Bullet points for: {{.Transcript}}" {
		t.Fatalf("unexpected summary.prompt: %q", cfg.Summary.Prompt)
	}

	_, _, err = Parse(`{"summary": {"prompt": "{{.Transcript"}}`, Default())
	if err == nil {
		t.Fatal("expected prompt template error")
	}
	if !strings.Contains(err.Error(), "summary.prompt") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseDoesNotMutateBaseVocab(t *testing.T) {
	base := Default()
	_, _, err := Parse(`{"vocab": {"sets": {"x": {"phrases": ["x"]}}}}`, base)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := base.Vocab.Sets["x"]; ok {
		t.Fatal("base vocab sets were mutated")
	}
}
