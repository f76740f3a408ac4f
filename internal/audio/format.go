// Package audio handles device discovery, capture streams, and per-frame level metering.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceUnavailable wraps backend failures that prevent opening an input stream.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrAlreadyRecording is returned when a second stream is requested while one is open.
	ErrAlreadyRecording = errors.New("a recording stream is already open")
	// ErrUnsupportedFormat is returned for bit depths or channel counts a backend cannot capture.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Format describes interleaved signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is 44.1kHz mono 16-bit.
func DefaultFormat() Format {
	return Format{SampleRate: 44100, Channels: 1, BitDepth: 16}
}

// Validate rejects formats outside 16/24/32-bit signed PCM.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0", ErrUnsupportedFormat)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be > 0", ErrUnsupportedFormat)
	}
	switch f.BitDepth {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, f.BitDepth)
	}
}

// BytesPerSample is the width of one sample of one channel.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BlockAlign is the width of one sample frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BytesPerSample()
}

// ByteRate is the number of PCM bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration converts a PCM byte count to playback time.
func (f Format) Duration(bytes int) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 || bytes <= 0 {
		return 0
	}
	return time.Duration(int64(bytes) * int64(time.Second) / int64(rate))
}

// MaxMagnitude is the largest absolute value representable at this bit depth.
func (f Format) MaxMagnitude() float64 {
	if f.BitDepth <= 0 {
		return 0
	}
	return float64(int64(1) << (f.BitDepth - 1))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Frame is one block of captured PCM.
type Frame struct {
	Data      []byte
	Format    Format
	Timestamp time.Time
}

// Complete reports whether Data holds only whole sample frames.
func (f Frame) Complete() bool {
	align := f.Format.BlockAlign()
	return align > 0 && len(f.Data)%align == 0
}

// SampleCount is the number of individual channel samples in the frame.
func (f Frame) SampleCount() int {
	width := f.Format.BytesPerSample()
	if width <= 0 {
		return 0
	}
	return len(f.Data) / width
}

// Sample decodes the i-th channel sample.
func (f Frame) Sample(i int) int32 {
	width := f.Format.BytesPerSample()
	return decodeSample(f.Data[i*width:], width)
}

func decodeSample(b []byte, width int) int32 {
	switch width {
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		return int32(u<<8) >> 8
	case 4:
		return int32(binary.LittleEndian.Uint32(b))
	default:
		return 0
	}
}
