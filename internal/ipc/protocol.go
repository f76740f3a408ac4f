// Package ipc carries control commands between vmemo processes over a unix socket.
package ipc

// Commands understood by a recording owner.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// Request is one newline-delimited JSON command.
type Request struct {
	Command string `json:"command"`
}

// Response reports the owner's state after handling a command.
type Response struct {
	OK        bool    `json:"ok"`
	State     string  `json:"state,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	Level     float64 `json:"level,omitempty"`
	Message   string  `json:"message,omitempty"`
	Error     string  `json:"error,omitempty"`
}
