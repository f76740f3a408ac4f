package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Synthetic is a device-free Source that replays preset PCM blocks.
type Synthetic struct {
	// Blocks are written to the stream in order; their sizes need not match the block size.
	Blocks [][]byte
	// Interval paces writes; zero writes as fast as the handler allows.
	Interval time.Duration
	// FramesPerBuffer sets the emitted frame size.
	FramesPerBuffer int
	// OpenErr, when set, is returned by Open wrapped in ErrDeviceUnavailable.
	OpenErr error
	// Loop replays Blocks until the stream is stopped.
	Loop bool
}

func (s *Synthetic) Open(_ context.Context, format Format) (Stream, error) {
	if s.OpenErr != nil {
		return nil, wrapDeviceError(s.OpenErr)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &syntheticStream{
		d:        newDispatcher(format, s.FramesPerBuffer),
		blocks:   s.Blocks,
		interval: s.Interval,
		loop:     s.Loop,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

type syntheticStream struct {
	d        *dispatcher
	blocks   [][]byte
	interval time.Duration
	loop     bool

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
	done      chan struct{}
}

func (s *syntheticStream) Format() Format {
	return s.d.format
}

func (s *syntheticStream) Stats() Stats {
	return s.d.stats()
}

func (s *syntheticStream) Start(handler FrameHandler) error {
	s.startOnce.Do(func() {
		s.started = true
		s.d.setHandler(handler)
		go s.run()
	})
	return nil
}

func (s *syntheticStream) run() {
	defer close(s.done)
	for {
		for _, block := range s.blocks {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if _, err := s.d.write(block); err != nil {
				return
			}
			if s.interval > 0 {
				select {
				case <-s.stopCh:
					return
				case <-time.After(s.interval):
				}
			}
		}
		if !s.loop || len(s.blocks) == 0 {
			<-s.stopCh
			return
		}
	}
}

func (s *syntheticStream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.d.stop()
		s.startOnce.Do(func() {})
		if s.started {
			<-s.done
		}
	})
	return nil
}

func (s *syntheticStream) Close() error {
	return s.Stop()
}

// ToneBlocks renders a sine tone of the given length as blocks of framesPerBuffer sample frames.
func ToneBlocks(format Format, freqHz float64, level float64, length time.Duration, framesPerBuffer int) [][]byte {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	total := int(int64(format.SampleRate) * int64(length) / int64(time.Second))
	peak := level * (format.MaxMagnitude() - 1)

	var blocks [][]byte
	for start := 0; start < total; start += framesPerBuffer {
		n := framesPerBuffer
		if start+n > total {
			n = total - start
		}
		block := make([]byte, 0, n*format.BlockAlign())
		for i := 0; i < n; i++ {
			v := int32(math.Round(peak * math.Sin(2*math.Pi*freqHz*float64(start+i)/float64(format.SampleRate))))
			for ch := 0; ch < format.Channels; ch++ {
				block = appendSample(block, v, format.BytesPerSample())
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func appendSample(b []byte, v int32, width int) []byte {
	switch width {
	case 2:
		return binary.LittleEndian.AppendUint16(b, uint16(int16(v)))
	case 3:
		u := uint32(v)
		return append(b, byte(u), byte(u>>8), byte(u>>16))
	case 4:
		return binary.LittleEndian.AppendUint32(b, uint32(v))
	default:
		return b
	}
}
