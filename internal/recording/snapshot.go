package recording

import (
	"time"

	"github.com/rbright/vmemo/internal/audio"
)

// Snapshot is the sealed payload of a finalized recording.
type Snapshot struct {
	format  audio.Format
	data    []byte
	frames  int
	limited bool
}

// Format is the recording's audio format.
func (s Snapshot) Format() audio.Format {
	return s.format
}

// PCM returns the recorded samples. Callers must not modify the slice.
func (s Snapshot) PCM() []byte {
	return s.data
}

// Len is the payload size in bytes.
func (s Snapshot) Len() int {
	return len(s.data)
}

// Empty reports whether no audio was captured.
func (s Snapshot) Empty() bool {
	return len(s.data) == 0
}

// Frames is the number of accepted capture frames.
func (s Snapshot) Frames() int {
	return s.frames
}

// Truncated reports whether the maximum length cut the recording short.
func (s Snapshot) Truncated() bool {
	return s.limited
}

// Duration is the playback length of the payload.
func (s Snapshot) Duration() time.Duration {
	return s.format.Duration(len(s.data))
}
