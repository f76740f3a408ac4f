package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyntheticDeliversAllBlocksInOrder(t *testing.T) {
	blocks := [][]byte{
		make([]byte, 2000),
		make([]byte, 2000),
		make([]byte, 2000),
	}
	blocks[1][0] = 7

	stream, err := (&Synthetic{Blocks: blocks, FramesPerBuffer: 1000}).Open(context.Background(), DefaultFormat())
	require.NoError(t, err)

	rec := &frameRecorder{}
	require.NoError(t, stream.Start(rec.handle))
	require.Eventually(t, func() bool { return rec.total() == 6000 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stream.Stop())

	require.Equal(t, []int{2000, 2000, 2000}, rec.sizes())
	require.Equal(t, byte(7), rec.frames[1].Data[0])
	require.Equal(t, int64(3), stream.Stats().Frames)
}

func TestSyntheticStopBeforeStartIsSafe(t *testing.T) {
	stream, err := (&Synthetic{Blocks: [][]byte{make([]byte, 64)}}).Open(context.Background(), DefaultFormat())
	require.NoError(t, err)
	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Start(func(Frame) { t.Fatal("handler invoked after stop") }))
	require.NoError(t, stream.Close())
}

func TestSyntheticLoopRunsUntilStopped(t *testing.T) {
	stream, err := (&Synthetic{
		Blocks:          [][]byte{make([]byte, 64)},
		FramesPerBuffer: 32,
		Interval:        time.Millisecond,
		Loop:            true,
	}).Open(context.Background(), DefaultFormat())
	require.NoError(t, err)

	rec := &frameRecorder{}
	require.NoError(t, stream.Start(rec.handle))
	require.Eventually(t, func() bool { return len(rec.sizes()) >= 5 }, time.Second, 2*time.Millisecond)
	require.NoError(t, stream.Stop())

	count := len(rec.sizes())
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, count, len(rec.sizes()))
}

func TestSyntheticRejectsInvalidFormat(t *testing.T) {
	_, err := (&Synthetic{}).Open(context.Background(), Format{SampleRate: 8000, Channels: 1, BitDepth: 12})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToneBlocksSizes(t *testing.T) {
	format := Format{SampleRate: 1000, Channels: 2, BitDepth: 24}
	blocks := ToneBlocks(format, 100, 0.5, 250*time.Millisecond, 100)

	require.Len(t, blocks, 3)
	require.Len(t, blocks[0], 100*6)
	require.Len(t, blocks[2], 50*6)

	level := Amplitude(Frame{Data: blocks[0], Format: format})
	require.Greater(t, level, 0.2)
	require.Less(t, level, 0.5)
}
