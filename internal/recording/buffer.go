// Package recording accumulates captured PCM for one session.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbright/vmemo/internal/audio"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the buffer's current state.
	ErrInvalidState = errors.New("recording buffer: invalid state")
	// ErrPartialFrame is returned for frames that do not hold whole sample frames.
	ErrPartialFrame = errors.New("recording buffer: partial frame")
	// ErrFormatMismatch is returned for frames captured in a different format than the session.
	ErrFormatMismatch = errors.New("recording buffer: format mismatch")
	// ErrLimitReached is returned once the configured maximum duration is full.
	ErrLimitReached = errors.New("recording buffer: maximum length reached")
)

// State is the buffer lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// Options configures one buffer.
type Options struct {
	Format audio.Format
	// MaxDuration caps the recording; zero means unbounded.
	MaxDuration time.Duration
	// Prealloc is the initial capacity expressed as audio length.
	Prealloc time.Duration
}

// Buffer is a mutex-guarded PCM accumulator. Its length is always a multiple of the block alignment.
type Buffer struct {
	format   audio.Format
	maxBytes int
	prealloc int

	mu      sync.Mutex
	state   State
	data    []byte
	frames  int
	limited bool
}

// New returns an idle buffer.
func New(opts Options) *Buffer {
	return &Buffer{
		format:   opts.Format,
		maxBytes: alignedBytes(opts.Format, opts.MaxDuration),
		prealloc: alignedBytes(opts.Format, opts.Prealloc),
		state:    StateIdle,
	}
}

// Begin starts a new recording with an empty payload.
func (b *Buffer) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateIdle {
		return fmt.Errorf("%w: begin from %s", ErrInvalidState, b.state)
	}

	capacity := b.prealloc
	if b.maxBytes > 0 && capacity > b.maxBytes {
		capacity = b.maxBytes
	}
	b.data = make([]byte, 0, capacity)
	b.frames = 0
	b.limited = false
	b.state = StateRecording
	return nil
}

// Append copies frame into the buffer.
//
// When the frame would exceed the maximum length, the whole sample frames that fit are kept
// and ErrLimitReached is returned; every later Append returns ErrLimitReached.
func (b *Buffer) Append(frame audio.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateRecording {
		return fmt.Errorf("%w: append while %s", ErrInvalidState, b.state)
	}
	if frame.Format != b.format {
		return fmt.Errorf("%w: got %s, session is %s", ErrFormatMismatch, frame.Format, b.format)
	}
	if !frame.Complete() {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrPartialFrame, len(frame.Data), b.format.BlockAlign())
	}
	if b.limited {
		return ErrLimitReached
	}

	data := frame.Data
	if b.maxBytes > 0 && len(b.data)+len(data) > b.maxBytes {
		data = data[:b.maxBytes-len(b.data)]
		b.limited = true
	}
	b.data = append(b.data, data...)
	b.frames++

	if b.limited {
		return ErrLimitReached
	}
	return nil
}

// Finalize seals the recording and hands its payload to the returned snapshot.
func (b *Buffer) Finalize() (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateRecording {
		return Snapshot{}, fmt.Errorf("%w: finalize while %s", ErrInvalidState, b.state)
	}

	snapshot := Snapshot{format: b.format, data: b.data, frames: b.frames, limited: b.limited}
	b.data = nil
	b.state = StateStopped
	return snapshot, nil
}

// Reset discards everything and returns to idle. It is refused while recording.
func (b *Buffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateRecording {
		return fmt.Errorf("%w: reset while recording", ErrInvalidState)
	}
	b.data = nil
	b.frames = 0
	b.limited = false
	b.state = StateIdle
	return nil
}

// State returns the current lifecycle state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len is the number of PCM bytes accumulated in the current recording.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Format is the session audio format.
func (b *Buffer) Format() audio.Format {
	return b.format
}

func alignedBytes(format audio.Format, d time.Duration) int {
	if d <= 0 || format.ByteRate() <= 0 {
		return 0
	}
	n := int(int64(format.ByteRate()) * int64(d) / int64(time.Second))
	return n - n%format.BlockAlign()
}
