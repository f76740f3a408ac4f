//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListDevicesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	devices, err := ListDevices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
}

func TestPulseSourceCapturesFramesIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	src := Exclusive(&PulseSource{Input: "default", Fallback: "default", FramesPerBuffer: 441})
	stream, err := src.Open(ctx, DefaultFormat())
	require.NoError(t, err)
	defer stream.Close()

	_, err = src.Open(ctx, DefaultFormat())
	require.ErrorIs(t, err, ErrAlreadyRecording)

	frames := make(chan Frame, 64)
	require.NoError(t, stream.Start(func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	}))

	select {
	case f := <-frames:
		require.True(t, f.Complete())
	case <-ctx.Done():
		t.Fatal("no frame captured")
	}
	require.NoError(t, stream.Stop())
}
