// Package fsm defines the memo session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateStopped      State = "stopped"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateError        State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventCancel      Event = "cancel"
	EventTranscribe  Event = "transcribe"
	EventTranscribed Event = "transcribed"
	EventSummarize   Event = "summarize"
	EventSummarized  Event = "summarized"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

// Transition returns the next state for event, or an error when the pair is not allowed.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopped, nil
		case EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped:
		switch event {
		case EventTranscribe:
			return StateTranscribing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribing:
		switch event {
		case EventTranscribed:
			return StateIdle, nil
		case EventSummarize:
			return StateSummarizing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSummarizing:
		switch event {
		case EventSummarized:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Busy reports whether state belongs to an active pipeline (anything but idle/error).
func Busy(state State) bool {
	switch state {
	case StateRecording, StateStopped, StateTranscribing, StateSummarizing:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
