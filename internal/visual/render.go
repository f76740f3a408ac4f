package visual

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
)

// Style names a renderer.
type Style string

const (
	StyleBar      Style = "bar"
	StyleWaveform Style = "waveform"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// NewRenderer returns a terminal sink for style writing to w.
func NewRenderer(style Style, w io.Writer, width int) (Sink, error) {
	if width <= 0 {
		width = 40
	}
	switch style {
	case StyleBar, "":
		return &Bar{Out: w, Width: width}, nil
	case StyleWaveform:
		return &Waveform{Out: w, Width: width}, nil
	default:
		return nil, fmt.Errorf("unknown visual style %q", style)
	}
}

// Bar draws a single horizontal meter, redrawing the current line.
type Bar struct {
	Out   io.Writer
	Width int

	mu sync.Mutex
}

func (b *Bar) Render(s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.Out, "\r"+BarLine(s.Level, b.Width))
}

// BarLine formats level as a fixed-width bracketed meter.
func BarLine(level float64, width int) string {
	filled := int(math.Round(clamp(level) * float64(width)))
	if level > 0 && filled == 0 {
		filled = 1
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "]"
}

// Waveform draws a sparkline of the most recent Width window values.
type Waveform struct {
	Out   io.Writer
	Width int

	mu sync.Mutex
}

func (w *Waveform) Render(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.Out, "\r"+Sparkline(s.Window, w.Width))
}

// Sparkline renders the last width values, left-padded with blanks.
func Sparkline(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	top := len(sparkRunes) - 1
	for _, v := range values {
		v = clamp(v)
		if v == 0 {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(sparkRunes[int(math.Round(v*float64(top)))])
	}
	return sb.String()
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
