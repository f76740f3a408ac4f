package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource opens blocking-read PortAudio input streams.
type PortAudioSource struct {
	// DeviceName selects an input by exact name; empty uses the default input.
	DeviceName      string
	FramesPerBuffer int
	Logger          *slog.Logger
}

// Open initializes PortAudio and opens (but does not start) an input stream.
func (p *PortAudioSource) Open(_ context.Context, format Format) (Stream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.BitDepth == 24 {
		return nil, fmt.Errorf("%w: portaudio backend records 16 or 32-bit only", ErrUnsupportedFormat)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, wrapDeviceError(fmt.Errorf("initialize portaudio: %w", err))
	}

	device, err := findPortAudioDevice(p.DeviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, wrapDeviceError(err)
	}

	framesPerBuffer := p.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}

	s := &portAudioStream{
		d:      newDispatcher(format, framesPerBuffer),
		logger: p.Logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: format.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	samples := framesPerBuffer * format.Channels
	var buffer any
	if format.BitDepth == 16 {
		s.buf16 = make([]int16, samples)
		buffer = s.buf16
	} else {
		s.buf32 = make([]int32, samples)
		buffer = s.buf32
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, wrapDeviceError(fmt.Errorf("open portaudio stream: %w", err))
	}
	s.stream = stream
	s.scratch = make([]byte, 0, samples*format.BytesPerSample())
	return s, nil
}

// ListPortAudioDevices returns PortAudio devices that have input channels.
func ListPortAudioDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	defaultDevice, _ := portaudio.DefaultInputDevice()

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, Device{
			ID:          d.Name,
			Description: d.HostApi.Name,
			State:       "available",
			Available:   true,
			Default:     d == defaultDevice,
		})
	}
	return out, nil
}

func findPortAudioDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

type portAudioStream struct {
	stream  *portaudio.Stream
	d       *dispatcher
	logger  *slog.Logger
	buf16   []int16
	buf32   []int32
	scratch []byte

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	started   bool
	startErr  error
	stopCh    chan struct{}
	done      chan struct{}
}

func (s *portAudioStream) Format() Format {
	return s.d.format
}

func (s *portAudioStream) Stats() Stats {
	return s.d.stats()
}

func (s *portAudioStream) Start(handler FrameHandler) error {
	s.startOnce.Do(func() {
		s.d.setHandler(handler)
		if err := s.stream.Start(); err != nil {
			s.startErr = wrapDeviceError(fmt.Errorf("start portaudio stream: %w", err))
			return
		}
		s.started = true
		go s.readLoop()
	})
	return s.startErr
}

// readLoop pulls blocks until stopped; overflowed blocks are dropped and logged.
func (s *portAudioStream) readLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		err := s.stream.Read()
		if errors.Is(err, portaudio.InputOverflowed) {
			s.d.drop()
			if s.logger != nil {
				s.logger.Warn("audio input overflow; block dropped")
			}
			continue
		}
		if err != nil {
			if !s.d.isStopped() && s.logger != nil {
				s.logger.Error("audio read failed", "error", err.Error())
			}
			return
		}

		if _, err := s.d.write(s.encode()); err != nil {
			return
		}
	}
}

// encode serializes the read buffer to little-endian PCM in a reused scratch slice.
func (s *portAudioStream) encode() []byte {
	out := s.scratch[:0]
	if s.buf16 != nil {
		for _, v := range s.buf16 {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
	} else {
		for _, v := range s.buf32 {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
	}
	s.scratch = out
	return out
}

func (s *portAudioStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.d.stop()
		s.startOnce.Do(func() {})
		if s.started {
			err = s.stream.Stop()
			<-s.done
		}
	})
	return err
}

func (s *portAudioStream) Close() error {
	stopErr := s.Stop()
	s.closeOnce.Do(func() {
		if err := s.stream.Close(); err != nil && stopErr == nil {
			stopErr = err
		}
		_ = portaudio.Terminate()
	})
	return stopErr
}
