package stream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/engine/internal/video"
)

func frameN(n int) video.Frame {
	return video.Frame{JPEG: []byte(fmt.Sprintf("frame-%d", n))}
}

func TestFrameBufferFillsToCapacity(t *testing.T) {
	b := NewFrameBuffer(4)
	for i := 0; i < 3; i++ {
		b.Push(frameN(i))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 4, b.Cap())

	snap := b.Snapshot()
	require.Len(t, snap, 3)
	for i, f := range snap {
		assert.Equal(t, frameN(i).JPEG, f.JPEG)
	}
}

func TestFrameBufferEvictsOldestFirst(t *testing.T) {
	b := NewFrameBuffer(5)
	for i := 0; i < 10; i++ {
		b.Push(frameN(i))
	}

	assert.Equal(t, 5, b.Len())

	// Frames 0..4 evicted, 5..9 retained in order.
	snap := b.Snapshot()
	require.Len(t, snap, 5)
	for i, f := range snap {
		assert.Equal(t, frameN(i+5).JPEG, f.JPEG)
	}
}

func TestFrameBufferMinimumCapacity(t *testing.T) {
	b := NewFrameBuffer(0)
	b.Push(frameN(1))
	b.Push(frameN(2))

	assert.Equal(t, 1, b.Len())
	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, frameN(2).JPEG, snap[0].JPEG)
}

func TestFrameBufferSnapshotIsACopy(t *testing.T) {
	b := NewFrameBuffer(3)
	b.Push(frameN(0))

	snap := b.Snapshot()
	snap[0] = frameN(99)

	again := b.Snapshot()
	assert.Equal(t, frameN(0).JPEG, again[0].JPEG)
}
