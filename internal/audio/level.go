package audio

import (
	"math"
	"sync/atomic"
)

// DefaultLevelWindow is the rolling window length used for waveform rendering.
const DefaultLevelWindow = 100

// LevelMeter is a single-producer/single-consumer amplitude slot with a rolling window.
// Publish is called from the capture callback and never blocks; readers only load atomics.
type LevelMeter struct {
	latest atomic.Uint64
	seq    atomic.Uint64
	window []atomic.Uint64
}

// NewLevelMeter allocates a meter retaining the last size samples.
func NewLevelMeter(size int) *LevelMeter {
	if size <= 0 {
		size = DefaultLevelWindow
	}
	return &LevelMeter{window: make([]atomic.Uint64, size)}
}

// Observe computes the frame amplitude and publishes it. It has the FrameHandler shape.
func (m *LevelMeter) Observe(frame Frame) {
	m.Publish(Amplitude(frame))
}

// Publish stores v as the most recent value and appends it to the window.
func (m *LevelMeter) Publish(v float64) {
	bits := math.Float64bits(v)
	n := m.seq.Load()
	m.window[n%uint64(len(m.window))].Store(bits)
	m.latest.Store(bits)
	m.seq.Store(n + 1)
}

// Latest returns the most recent value and how many values have been published so far.
func (m *LevelMeter) Latest() (float64, uint64) {
	seq := m.seq.Load()
	return math.Float64frombits(m.latest.Load()), seq
}

// Window copies the retained values oldest-first into dst (reallocated when too small).
func (m *LevelMeter) Window(dst []float64) []float64 {
	seq := m.seq.Load()
	size := uint64(len(m.window))
	count := seq
	if count > size {
		count = size
	}

	if uint64(cap(dst)) < count {
		dst = make([]float64, count)
	}
	dst = dst[:count]

	start := seq - count
	for i := uint64(0); i < count; i++ {
		dst[i] = math.Float64frombits(m.window[(start+i)%size].Load())
	}
	return dst
}

// Size is the rolling window capacity.
func (m *LevelMeter) Size() int {
	return len(m.window)
}

// Reset clears the meter. Call only while no producer is publishing.
func (m *LevelMeter) Reset() {
	for i := range m.window {
		m.window[i].Store(0)
	}
	m.latest.Store(0)
	m.seq.Store(0)
}
