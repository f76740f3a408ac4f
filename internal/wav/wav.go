// Package wav encodes and decodes RIFF/WAVE PCM containers.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rbright/vmemo/internal/audio"
)

// HeaderSize is the length of the canonical header written by Encode.
const HeaderSize = 44

const formatPCM = 1

var (
	// ErrEmptyInput is returned by an Encoder that requires audio when given none.
	ErrEmptyInput = errors.New("wav: no audio data")
	// ErrMisaligned is returned when the payload is not a whole number of sample frames.
	ErrMisaligned = errors.New("wav: payload is not a multiple of the block alignment")
	// ErrMalformed is returned by Decode for input that is not a PCM RIFF/WAVE file.
	ErrMalformed = errors.New("wav: malformed container")
)

// Audio is an encoded WAV file plus its parsed description.
type Audio struct {
	data    []byte
	format  audio.Format
	dataOff int
	dataLen int
}

// Bytes is the complete container. Callers must not modify it.
func (a Audio) Bytes() []byte {
	return a.data
}

// Format is the PCM format declared by the fmt chunk.
func (a Audio) Format() audio.Format {
	return a.format
}

// DataLen is the PCM payload length in bytes.
func (a Audio) DataLen() int {
	return a.dataLen
}

// PCM is the sample payload without the container header.
func (a Audio) PCM() []byte {
	return a.data[a.dataOff : a.dataOff+a.dataLen]
}

// Empty reports whether the container holds no samples.
func (a Audio) Empty() bool {
	return a.dataLen == 0
}

// Duration is the playback length of the payload.
func (a Audio) Duration() time.Duration {
	return a.format.Duration(a.dataLen)
}

// Encoder wraps PCM in a canonical 44-byte header.
type Encoder struct {
	// RequireAudio rejects empty payloads with ErrEmptyInput instead of emitting a header-only file.
	RequireAudio bool
}

// Encode builds a container for pcm. The samples are copied unchanged after the header.
func (e Encoder) Encode(pcm []byte, format audio.Format) (Audio, error) {
	if err := format.Validate(); err != nil {
		return Audio{}, fmt.Errorf("encode wav: %w", err)
	}
	if len(pcm)%format.BlockAlign() != 0 {
		return Audio{}, fmt.Errorf("encode wav: %w (%d bytes, block align %d)", ErrMisaligned, len(pcm), format.BlockAlign())
	}
	if len(pcm) == 0 && e.RequireAudio {
		return Audio{}, ErrEmptyInput
	}

	out := make([]byte, HeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(format.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(format.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(format.BitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)

	return Audio{data: out, format: format, dataOff: HeaderSize, dataLen: len(pcm)}, nil
}

// Decode parses a PCM WAV file. Chunks other than fmt and data are skipped.
func Decode(data []byte) (Audio, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return Audio{}, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrMalformed)
	}

	var (
		format  audio.Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			if id == "data" && haveFmt {
				// Streamed writers leave the data size unset; take the remainder.
				size = len(data) - body
			} else {
				return Audio{}, fmt.Errorf("%w: chunk %q overruns file", ErrMalformed, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Audio{}, fmt.Errorf("%w: fmt chunk too short", ErrMalformed)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			if tag != formatPCM && tag != 0xFFFE {
				return Audio{}, fmt.Errorf("%w: format tag %d", audio.ErrUnsupportedFormat, tag)
			}
			format = audio.Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			if err := format.Validate(); err != nil {
				return Audio{}, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Audio{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			size -= size % format.BlockAlign()
			return Audio{data: data, format: format, dataOff: body, dataLen: size}, nil
		}

		// Chunks are word aligned.
		offset = body + size + size%2
	}
	return Audio{}, fmt.Errorf("%w: no data chunk", ErrMalformed)
}

// ReadFile decodes a WAV file from disk.
func ReadFile(path string) (Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Audio{}, fmt.Errorf("read wav %q: %w", path, err)
	}
	decoded, err := Decode(data)
	if err != nil {
		return Audio{}, fmt.Errorf("decode wav %q: %w", path, err)
	}
	return decoded, nil
}

// WriteTo writes the container bytes to w.
func (a Audio) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}
