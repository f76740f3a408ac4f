// Package cli parses vmemo command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord     Command = "record"
	CommandToggle     Command = "toggle"
	CommandStop       Command = "stop"
	CommandCancel     Command = "cancel"
	CommandStatus     Command = "status"
	CommandTranscribe Command = "transcribe"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRecord:     {},
	CommandToggle:     {},
	CommandStop:       {},
	CommandCancel:     {},
	CommandStatus:     {},
	CommandTranscribe: {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// File is the WAV path for the transcribe command.
	File     string
	ShowHelp bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if cmd == CommandTranscribe {
				i++
				if i >= len(args) || strings.TrimSpace(args[i]) == "" {
					return Parsed{}, errors.New("transcribe requires a WAV file path")
				}
				parsed.File = args[i]
			}
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  record           Record in the foreground; press Enter to stop, Ctrl-C to cancel
  toggle           Start recording, or stop and transcribe when already recording
  stop             Stop the active recording and transcribe it
  cancel           Cancel the active recording and discard the audio
  status           Print current state
  transcribe FILE  Transcribe (and summarize) an existing WAV file
  devices          List available input devices
  doctor           Run configuration and environment checks
  version          Print version information
  help             Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/vmemo/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
