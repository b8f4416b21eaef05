package video

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/visionedge/engine/pkg/models"
)

// fallbackFPS is assumed when the container reports no frame rate,
// as RTSP sources sometimes do.
const fallbackFPS = 25

// gocvSource reads frames from an OpenCV VideoCapture.
type gocvSource struct {
	capture *gocv.VideoCapture
	fps     int
	mat     gocv.Mat
}

// OpenSource opens a video source with OpenCV. It satisfies the Opener
// signature and maps open failures to ErrSourceUnavailable.
func OpenSource(_ context.Context, url string) (Source, error) {
	capture, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, url, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", models.ErrSourceUnavailable, url)
	}

	fps := int(capture.Get(gocv.VideoCaptureFPS))
	if fps <= 0 {
		fps = fallbackFPS
	}
	return &gocvSource{
		capture: capture,
		fps:     fps,
		mat:     gocv.NewMat(),
	}, nil
}

func (s *gocvSource) ReadFrame() (Frame, error) {
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return Frame{}, io.EOF
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	elapsed := time.Duration(s.capture.Get(gocv.VideoCapturePosMsec)) * time.Millisecond
	return Frame{JPEG: jpeg, Elapsed: elapsed}, nil
}

func (s *gocvSource) FPS() int { return s.fps }

func (s *gocvSource) Close() error {
	s.mat.Close()
	return s.capture.Close()
}

// MP4Encoder writes frames into an MP4 container via OpenCV's VideoWriter.
// The writer only targets files, so the clip goes through a temp path.
type MP4Encoder struct{}

func (MP4Encoder) Encode(frames []Frame, fps int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}
	if fps <= 0 {
		fps = fallbackFPS
	}

	first, err := gocv.IMDecode(frames[0].JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode first frame: %w", err)
	}
	width, height := first.Cols(), first.Rows()
	first.Close()

	tmp, err := os.CreateTemp("", "visionedge-clip-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create temp clip: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	writer, err := gocv.VideoWriterFile(tmpPath, "mp4v", float64(fps), width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open clip writer: %w", err)
	}

	for _, f := range frames {
		mat, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		err = writer.Write(mat)
		mat.Close()
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("write frame: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close clip writer: %w", err)
	}

	return os.ReadFile(tmpPath)
}
