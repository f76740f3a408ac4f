// Package visual renders live amplitude at a fixed refresh rate, decoupled from capture.
package visual

import (
	"context"
	"time"

	"github.com/rbright/vmemo/internal/audio"
)

// DefaultRefreshHz is the render rate when none is configured.
const DefaultRefreshHz = 30

// Sample is one render input.
type Sample struct {
	// Level is the most recent amplitude in [0,1].
	Level float64
	// Window is the rolling history, oldest first. It is only valid during Render.
	Window []float64
	// Fresh is false when no new amplitude arrived since the previous tick.
	Fresh bool
}

// Sink consumes render samples.
type Sink interface {
	Render(Sample)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Sample)

func (f SinkFunc) Render(s Sample) {
	f(s)
}

// Driver polls a level meter and forwards its state to a sink.
type Driver struct {
	Level *audio.LevelMeter
	Sink  Sink
	// RefreshHz defaults to DefaultRefreshHz.
	RefreshHz int

	// tick overrides the ticker in tests.
	tick <-chan time.Time
}

// Run renders on every tick until ctx is done.
func (d *Driver) Run(ctx context.Context) {
	if d.Level == nil || d.Sink == nil {
		<-ctx.Done()
		return
	}

	tick := d.tick
	if tick == nil {
		ticker := time.NewTicker(d.interval())
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		lastSeq uint64
		window  = make([]float64, 0, d.Level.Size())
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			level, seq := d.Level.Latest()
			window = d.Level.Window(window)
			d.Sink.Render(Sample{Level: level, Window: window, Fresh: seq != lastSeq})
			lastSeq = seq
		}
	}
}

func (d *Driver) interval() time.Duration {
	hz := d.RefreshHz
	if hz <= 0 {
		hz = DefaultRefreshHz
	}
	return time.Second / time.Duration(hz)
}
