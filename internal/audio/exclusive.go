package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

// processStream guards every source returned by ProcessExclusive.
var processStream atomic.Bool

// Exclusive wraps src so that at most one of its streams is open at a time.
// A second Open before the first stream is closed fails with ErrAlreadyRecording.
func Exclusive(src Source) Source {
	return &exclusiveSource{src: src, open: new(atomic.Bool)}
}

// ProcessExclusive is Exclusive with one guard shared by the whole process,
// so two wrapped sources cannot record at the same time either.
func ProcessExclusive(src Source) Source {
	return &exclusiveSource{src: src, open: &processStream}
}

type exclusiveSource struct {
	src  Source
	open *atomic.Bool
}

func (e *exclusiveSource) Open(ctx context.Context, format Format) (Stream, error) {
	if !e.open.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRecording
	}
	stream, err := e.src.Open(ctx, format)
	if err != nil {
		e.open.Store(false)
		return nil, err
	}
	return &exclusiveStream{Stream: stream, release: func() { e.open.Store(false) }}, nil
}

type exclusiveStream struct {
	Stream
	once    sync.Once
	release func()
}

func (s *exclusiveStream) Close() error {
	err := s.Stream.Close()
	s.once.Do(s.release)
	return err
}
