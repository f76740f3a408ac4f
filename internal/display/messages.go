package display

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording    string
	transcribing string
	summarizing  string
	stopped      string
	cancelled    string
	transcript   string
	summary      string
	errorText    string
}

func messagesFromEnv() messages {
	return localeMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func localeMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording:    "Recording… press Enter to stop",
			transcribing: "Transcribing…",
			summarizing:  "Summarizing…",
			stopped:      "Recording stopped",
			cancelled:    "Recording cancelled",
			transcript:   "Transcript",
			summary:      "Summary",
			errorText:    "Speech recognition error",
		}
	}
}
