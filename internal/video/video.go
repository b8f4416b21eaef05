// Package video defines the engine's narrow interface to video I/O:
// opening a source, reading frames, and encoding buffered frames into a
// playable clip. The GoCV implementations live alongside; tests substitute
// fakes.
package video

import (
	"context"
	"time"
)

// Frame is one captured frame, JPEG-encoded at read time so it can be
// buffered, transported to the inference backend, and persisted without
// holding native image handles.
type Frame struct {
	JPEG []byte

	// Elapsed is the source-relative timestamp of the frame.
	Elapsed time.Duration
}

// Source is an open video stream. ReadFrame returns io.EOF when the source
// is exhausted; any other error is a read failure.
type Source interface {
	ReadFrame() (Frame, error)
	FPS() int
	Close() error
}

// Opener opens a video source by URL (RTSP, file, device index).
type Opener func(ctx context.Context, url string) (Source, error)

// ClipEncoder materializes a short playable clip from raw frames.
type ClipEncoder interface {
	Encode(frames []Frame, fps int) ([]byte, error)
}
