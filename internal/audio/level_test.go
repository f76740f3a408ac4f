package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelMeterLatestAndSequence(t *testing.T) {
	m := NewLevelMeter(4)

	v, seq := m.Latest()
	require.Equal(t, 0.0, v)
	require.Equal(t, uint64(0), seq)

	m.Publish(0.25)
	m.Publish(0.5)
	v, seq = m.Latest()
	require.Equal(t, 0.5, v)
	require.Equal(t, uint64(2), seq)
}

func TestLevelMeterWindowIsBoundedOldestFirst(t *testing.T) {
	m := NewLevelMeter(3)
	require.Empty(t, m.Window(nil))

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		m.Publish(v)
	}
	require.Equal(t, []float64{0.3, 0.4, 0.5}, m.Window(nil))

	dst := make([]float64, 0, 8)
	got := m.Window(dst)
	require.Equal(t, []float64{0.3, 0.4, 0.5}, got)
}

func TestLevelMeterDefaultsAndReset(t *testing.T) {
	m := NewLevelMeter(0)
	require.Equal(t, DefaultLevelWindow, m.Size())

	m.Publish(0.9)
	m.Reset()
	v, seq := m.Latest()
	require.Equal(t, 0.0, v)
	require.Equal(t, uint64(0), seq)
	require.Empty(t, m.Window(nil))
}

func TestLevelMeterObserveUsesAmplitude(t *testing.T) {
	m := NewLevelMeter(2)
	m.Observe(Frame{Data: pcm16(16384, -16384), Format: DefaultFormat()})
	v, _ := m.Latest()
	require.InDelta(t, 0.5, v, 1e-12)
}

func TestLevelMeterConcurrentProducerAndReader(t *testing.T) {
	m := NewLevelMeter(16)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			m.Publish(float64(i%100) / 100)
		}
	}()
	go func() {
		defer wg.Done()
		buf := make([]float64, 0, 16)
		for i := 0; i < 5000; i++ {
			v, _ := m.Latest()
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, len(m.Window(buf)), 16)
		}
	}()

	wg.Wait()
	_, seq := m.Latest()
	require.Equal(t, uint64(5000), seq)
}
