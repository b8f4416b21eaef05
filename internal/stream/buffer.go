package stream

import "github.com/visionedge/engine/internal/video"

// FrameBuffer is a FIFO ring of the most recent frames for one session,
// used solely to materialize a short evidence clip around an alert moment.
// Eviction is strict oldest-first once capacity is reached. The buffer is
// exclusively owned by its session's loop and is never shared.
type FrameBuffer struct {
	frames   []video.Frame
	capacity int
	head     int
	size     int
}

// NewFrameBuffer creates a ring holding up to capacity frames.
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameBuffer{
		frames:   make([]video.Frame, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest when full.
func (b *FrameBuffer) Push(f video.Frame) {
	tail := (b.head + b.size) % b.capacity
	b.frames[tail] = f
	if b.size < b.capacity {
		b.size++
		return
	}
	b.head = (b.head + 1) % b.capacity
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *FrameBuffer) Cap() int { return b.capacity }

// Snapshot copies the buffered frames in oldest-first order.
func (b *FrameBuffer) Snapshot() []video.Frame {
	out := make([]video.Frame, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.frames[(b.head+i)%b.capacity]
	}
	return out
}
