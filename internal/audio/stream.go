package audio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFramesPerBuffer is the capture block size in sample frames.
const DefaultFramesPerBuffer = 1024

// FrameHandler receives captured frames on the capture goroutine. It must not block.
type FrameHandler func(Frame)

// Source opens capture streams.
type Source interface {
	Open(ctx context.Context, format Format) (Stream, error)
}

// Stream is one open input stream.
//
// Stop is idempotent and synchronous: once it returns the handler is never invoked again.
type Stream interface {
	Start(FrameHandler) error
	Stop() error
	Close() error
	Format() Format
	Stats() Stats
}

// Stats summarizes stream delivery counters.
type Stats struct {
	Frames  int64
	Bytes   int64
	Dropped int64
}

// dispatcher slices raw backend PCM into fixed-size frames and enforces the stop contract.
type dispatcher struct {
	format     Format
	blockBytes int
	now        func() time.Time

	mu      sync.Mutex
	handler FrameHandler
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	frames   atomic.Int64
	bytes    atomic.Int64
	dropped  atomic.Int64
}

func newDispatcher(format Format, framesPerBuffer int) *dispatcher {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &dispatcher{
		format:     format,
		blockBytes: framesPerBuffer * format.BlockAlign(),
		now:        time.Now,
	}
}

func (d *dispatcher) setHandler(handler FrameHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

// write accepts arbitrary-length PCM and emits whole blocks. It returns io.EOF once stopped.
func (d *dispatcher) write(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	d.mu.Lock()
	if d.stopped || d.handler == nil {
		d.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped so stop's Wait cannot miss a writer.
	d.inflight.Add(1)

	d.pending = append(d.pending, buffer...)
	blocks := make([][]byte, 0, len(d.pending)/d.blockBytes)
	for len(d.pending) >= d.blockBytes {
		block := make([]byte, d.blockBytes)
		copy(block, d.pending[:d.blockBytes])
		d.pending = d.pending[d.blockBytes:]
		blocks = append(blocks, block)
	}
	handler := d.handler
	d.mu.Unlock()
	defer d.inflight.Done()

	d.bytes.Add(int64(len(buffer)))
	for _, block := range blocks {
		d.emit(handler, block)
	}
	return len(buffer), nil
}

// drop records a block lost to a backend overrun.
func (d *dispatcher) drop() {
	d.dropped.Add(1)
}

// stop blocks new writes, waits for in-flight handlers, and flushes whole residual sample frames.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	pending := d.pending
	d.pending = nil
	handler := d.handler
	d.mu.Unlock()

	d.inflight.Wait()

	if align := d.format.BlockAlign(); align > 0 {
		pending = pending[:len(pending)-len(pending)%align]
	}
	if len(pending) > 0 && handler != nil {
		d.emit(handler, pending)
	}
}

func (d *dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func (d *dispatcher) emit(handler FrameHandler, block []byte) {
	d.frames.Add(1)
	handler(Frame{Data: block, Format: d.format, Timestamp: d.now()})
}

func (d *dispatcher) stats() Stats {
	return Stats{
		Frames:  d.frames.Load(),
		Bytes:   d.bytes.Load(),
		Dropped: d.dropped.Load(),
	}
}

// writerFunc adapts a function to io.Writer for backend sinks.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// wrapDeviceError tags backend open failures with ErrDeviceUnavailable.
func wrapDeviceError(err error) error {
	if err == nil {
		return nil
	}
	return &deviceError{err: err}
}

type deviceError struct {
	err error
}

func (e *deviceError) Error() string {
	return ErrDeviceUnavailable.Error() + ": " + e.err.Error()
}

func (e *deviceError) Unwrap() []error {
	return []error{ErrDeviceUnavailable, e.err}
}
