package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	var (
		defaultDevice *Device
		byInput       *Device
		byFallback    *Device
	)

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && input != "default" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && fallback != "default" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	chooseDefault := func() (*Device, error) {
		if defaultDevice == nil {
			return nil, errors.New("default audio source is unavailable")
		}
		return defaultDevice, nil
	}

	selectPrimary := func() (*Device, error) {
		if input == "" || input == "default" {
			return chooseDefault()
		}
		if byInput != nil {
			return byInput, nil
		}
		return nil, fmt.Errorf("audio.input %q did not match any device", input)
	}

	primary, err := selectPrimary()
	if err != nil {
		return Selection{}, err
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	fallbackDevice := primary
	if fallback != "" && fallback != "default" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
		}
		fallbackDevice = byFallback
	} else {
		d, derr := chooseDefault()
		if derr != nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, primaryReason, derr)
		}
		fallbackDevice = d
	}

	if !fallbackDevice.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", fallbackDevice.ID)
	}
	if fallbackDevice.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", fallbackDevice.ID)
	}

	return Selection{
		Device:   *fallbackDevice,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primaryReason, fallbackDevice.ID),
		Fallback: primary.ID != fallbackDevice.ID,
	}, nil
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// PulseSource opens record streams on a PulseAudio server.
type PulseSource struct {
	Input           string
	Fallback        string
	FramesPerBuffer int
	Logger          *slog.Logger
}

// Open resolves the configured input and creates a stopped record stream.
func (p *PulseSource) Open(ctx context.Context, format Format) (Stream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	sampleFormat, err := pulseSampleFormat(format.BitDepth)
	if err != nil {
		return nil, err
	}
	channels, err := pulseChannels(format.Channels)
	if err != nil {
		return nil, err
	}

	selection, err := SelectDevice(ctx, p.Input, p.Fallback)
	if err != nil {
		return nil, wrapDeviceError(err)
	}
	if selection.Warning != "" && p.Logger != nil {
		p.Logger.Warn(selection.Warning)
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, wrapDeviceError(err)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, wrapDeviceError(fmt.Errorf("resolve source %q: %w", selection.Device.ID, err))
	}

	stream := &pulseStream{
		device: selection.Device,
		client: client,
		d:      newDispatcher(format, p.FramesPerBuffer),
	}

	writer := pulse.NewWriter(writerFunc(stream.d.write), sampleFormat)
	record, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		channels,
		pulse.RecordSampleRate(format.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(stream.d.blockBytes)),
		pulse.RecordMediaName("vmemo recording"),
	)
	if err != nil {
		client.Close()
		return nil, wrapDeviceError(fmt.Errorf("create pulse record stream: %w", err))
	}
	stream.record = record
	return stream, nil
}

type pulseStream struct {
	device Device
	client *pulse.Client
	record *pulse.RecordStream
	d      *dispatcher

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
}

// Device returns capture metadata for logging and diagnostics.
func (s *pulseStream) Device() Device {
	return s.device
}

func (s *pulseStream) Format() Format {
	return s.d.format
}

func (s *pulseStream) Stats() Stats {
	return s.d.stats()
}

func (s *pulseStream) Start(handler FrameHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.started {
		return nil
	}
	s.d.setHandler(handler)
	s.record.Start()
	s.started = true
	return nil
}

// Stop halts delivery; writes racing the stop are refused with io.EOF.
func (s *pulseStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.d.stop()
	if started && s.record != nil {
		s.record.Stop()
	}
	return nil
}

func (s *pulseStream) Close() error {
	_ = s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.record != nil {
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("vmemo"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// pulseFormatInt24LE is PA_SAMPLE_S24LE; the pulse proto package only names 8, 16, and 32-bit formats.
const pulseFormatInt24LE byte = 9

// pulseSampleFormat maps a bit depth to the pulse wire format.
func pulseSampleFormat(bitDepth int) (byte, error) {
	switch bitDepth {
	case 16:
		return pulseproto.FormatInt16LE, nil
	case 24:
		return pulseFormatInt24LE, nil
	case 32:
		return pulseproto.FormatInt32LE, nil
	default:
		return 0, fmt.Errorf("%w: pulse cannot record %d-bit", ErrUnsupportedFormat, bitDepth)
	}
}

// pulseChannels maps a channel count to a record option; pulse capture is mono or stereo here.
func pulseChannels(channels int) (pulse.RecordOption, error) {
	switch channels {
	case 1:
		return pulse.RecordMono, nil
	case 2:
		return pulse.RecordStereo, nil
	default:
		return nil, fmt.Errorf("%w: pulse capture supports 1 or 2 channels, got %d", ErrUnsupportedFormat, channels)
	}
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
