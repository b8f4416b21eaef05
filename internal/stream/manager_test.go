package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/engine/internal/alert"
	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/internal/video"
	"github.com/visionedge/engine/pkg/models"
)

// stubSource replays a fixed sequence of frames, then io.EOF. A nil frames
// slice with hold set keeps the source alive until the context is cancelled.
type stubSource struct {
	mu     sync.Mutex
	frames []video.Frame
	next   int
	fps    int
	hold   bool
	closed bool
}

func (s *stubSource) ReadFrame() (video.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next < len(s.frames) {
		f := s.frames[s.next]
		s.next++
		return f, nil
	}
	if s.hold {
		return video.Frame{JPEG: []byte("filler")}, nil
	}
	return video.Frame{}, io.EOF
}

func (s *stubSource) FPS() int { return s.fps }

func (s *stubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSource) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func openerFor(src video.Source) video.Opener {
	return func(context.Context, string) (video.Source, error) {
		return src, nil
	}
}

type stubInvoker struct {
	mu     sync.Mutex
	calls  int
	result models.DetectionResult
	err    error
}

func (s *stubInvoker) Invoke(_ context.Context, skillName string, _ models.Payload) (models.DetectionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return models.DetectionResult{}, s.err
	}
	res := s.result
	res.SkillName = skillName
	return res, nil
}

func (s *stubInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordedAlert struct {
	alert  models.Alert
	frames []video.Frame
	fps    int
}

type stubRecorder struct {
	mu      sync.Mutex
	records []recordedAlert
}

func (s *stubRecorder) RecordStreamAlert(_ context.Context, alert *models.Alert, _ []byte, frames []video.Frame, fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordedAlert{alert: *alert, frames: frames, fps: fps})
}

func (s *stubRecorder) recorded() []recordedAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedAlert, len(s.records))
	copy(out, s.records)
	return out
}

func testCatalog() *skill.Catalog {
	c := skill.NewCatalog()
	c.Register(&skill.Skill{
		Name:     "person_detection",
		Topology: models.Topology{Kind: models.TopologySequential},
		Detector: &alert.Presence{Class: "person"},
	})
	return c
}

// newTestManager returns a manager with pacing shrunk so loops complete in
// test time.
func newTestManager(t *testing.T, invoker Invoker, recorder Recorder, open video.Opener) *Manager {
	t.Helper()
	m := NewManager(testCatalog(), invoker, recorder, open, 300*time.Millisecond, 10*time.Second)
	m.pacingDelay = time.Millisecond
	m.scheduleRecheck = time.Millisecond
	return m
}

func elapsedFrames(n int, step time.Duration) []video.Frame {
	frames := make([]video.Frame, n)
	for i := range frames {
		frames[i] = video.Frame{
			JPEG:    []byte{byte(i)},
			Elapsed: time.Duration(i+1) * step,
		}
	}
	return frames
}

func waitForIdle(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.ActiveCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartUnknownSkill(t *testing.T) {
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(&stubSource{fps: 25}))

	_, err := m.Start(context.Background(), StartRequest{Source: "rtsp://cam", Skill: "nope"})
	assert.ErrorIs(t, err, models.ErrSkillNotFound)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(&stubSource{fps: 25}))

	_, err := m.Start(context.Background(), StartRequest{
		Source:   "rtsp://cam",
		Skill:    "person_detection",
		Schedule: "not-a-window",
	})
	assert.Error(t, err)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestStartDuplicateThenRestart(t *testing.T) {
	src := &stubSource{fps: 25, hold: true}
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(src))

	id, err := m.Start(context.Background(), StartRequest{Source: "rtsp://cam", Skill: "person_detection"})
	require.NoError(t, err)
	assert.Equal(t, "rtsp://cam_person_detection", id)

	_, err = m.Start(context.Background(), StartRequest{Source: "rtsp://cam", Skill: "person_detection"})
	assert.ErrorIs(t, err, models.ErrAlreadyRunning)

	m.Stop(id)
	waitForIdle(t, m)
	assert.True(t, src.wasClosed())

	// The pair is free again after the loop exits.
	src2 := &stubSource{fps: 25, hold: true}
	m.open = openerFor(src2)
	id2, err := m.Start(context.Background(), StartRequest{Source: "rtsp://cam", Skill: "person_detection"})
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	m.Stop(id2)
	waitForIdle(t, m)
}

func TestStopUnknownIDIsNoop(t *testing.T) {
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(&stubSource{fps: 25}))
	m.Stop("never-started")
}

func TestOpenFailureRemovesSession(t *testing.T) {
	open := func(context.Context, string) (video.Source, error) {
		return nil, models.ErrSourceUnavailable
	}
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, open)

	id, err := m.Start(context.Background(), StartRequest{Source: "rtsp://dead", Skill: "person_detection"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	waitForIdle(t, m)
}

func TestEndOfStreamRemovesSession(t *testing.T) {
	src := &stubSource{fps: 25, frames: elapsedFrames(3, 100*time.Millisecond)}
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(src))

	_, err := m.Start(context.Background(), StartRequest{Source: "file:///clip.mp4", Skill: "person_detection"})
	require.NoError(t, err)
	waitForIdle(t, m)
	assert.True(t, src.wasClosed())
}

func TestSamplingFollowsSourceTime(t *testing.T) {
	// 10 frames at 100ms source spacing with a 300ms interval samples the
	// frames at 300, 600, and 900ms.
	src := &stubSource{fps: 25, frames: elapsedFrames(10, 100*time.Millisecond)}
	inv := &stubInvoker{}
	m := newTestManager(t, inv, &stubRecorder{}, openerFor(src))

	_, err := m.Start(context.Background(), StartRequest{
		Source:   "file:///clip.mp4",
		Skill:    "person_detection",
		Interval: 300 * time.Millisecond,
	})
	require.NoError(t, err)
	waitForIdle(t, m)
	assert.Equal(t, 3, inv.callCount())
}

func TestAlertReachesRecorderWithBufferedFrames(t *testing.T) {
	src := &stubSource{fps: 25, frames: elapsedFrames(5, 100*time.Millisecond)}
	inv := &stubInvoker{result: models.DetectionResult{
		Detections: []models.Detection{{Class: "person", Confidence: 0.9}},
	}}
	rec := &stubRecorder{}
	m := newTestManager(t, inv, rec, openerFor(src))

	_, err := m.Start(context.Background(), StartRequest{
		Source:   "file:///clip.mp4",
		Skill:    "person_detection",
		Level:    "medium",
		Interval: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	waitForIdle(t, m)

	records := rec.recorded()
	require.Len(t, records, 1)
	got := records[0]
	assert.NotEmpty(t, got.alert.ID)
	assert.Equal(t, "file:///clip.mp4_person_detection", got.alert.SessionID)
	assert.Equal(t, "person_detection", got.alert.SkillName)
	assert.Equal(t, "medium", got.alert.Level)
	assert.Equal(t, 25, got.fps)
	// The buffer held all five frames when the fifth was sampled.
	assert.Len(t, got.frames, 5)
}

func TestNoAlertWithoutMatchingDetections(t *testing.T) {
	src := &stubSource{fps: 25, frames: elapsedFrames(5, 100*time.Millisecond)}
	inv := &stubInvoker{result: models.DetectionResult{
		Detections: []models.Detection{{Class: "bicycle", Confidence: 0.9}},
	}}
	rec := &stubRecorder{}
	m := newTestManager(t, inv, rec, openerFor(src))

	_, err := m.Start(context.Background(), StartRequest{
		Source:   "file:///clip.mp4",
		Skill:    "person_detection",
		Interval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	waitForIdle(t, m)
	assert.Empty(t, rec.recorded())
}

func TestInvocationFailureKeepsSessionAlive(t *testing.T) {
	src := &stubSource{fps: 25, frames: elapsedFrames(5, 100*time.Millisecond)}
	inv := &stubInvoker{err: errors.New("backend down")}
	m := newTestManager(t, inv, &stubRecorder{}, openerFor(src))

	_, err := m.Start(context.Background(), StartRequest{
		Source:   "file:///clip.mp4",
		Skill:    "person_detection",
		Interval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	waitForIdle(t, m)
	// Every sampled frame was attempted despite the failures.
	assert.Equal(t, 5, inv.callCount())
}

func TestOutOfWindowSessionSleeps(t *testing.T) {
	src := &stubSource{fps: 25, hold: true}
	inv := &stubInvoker{}
	m := newTestManager(t, inv, &stubRecorder{}, openerFor(src))

	// A single-minute window twelve hours away from now is never current
	// while the test runs.
	other := (time.Now().Hour() + 12) % 24
	moment := time.Date(0, 1, 1, other, 0, 0, 0, time.UTC).Format("15:04")
	schedule := moment + "-" + moment

	id, err := m.Start(context.Background(), StartRequest{
		Source:   "rtsp://cam",
		Skill:    "person_detection",
		Schedule: schedule,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, info := range m.List() {
			if info.ID == id && info.State == StateSleeping {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, inv.callCount())

	m.Stop(id)
	waitForIdle(t, m)
}

func TestStopAll(t *testing.T) {
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(&stubSource{fps: 25, hold: true}))

	_, err := m.Start(context.Background(), StartRequest{Source: "rtsp://a", Skill: "person_detection"})
	require.NoError(t, err)
	_, err = m.Start(context.Background(), StartRequest{Source: "rtsp://b", Skill: "person_detection"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.ActiveCount())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.StopAll(ctx))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestListSnapshots(t *testing.T) {
	m := newTestManager(t, &stubInvoker{}, &stubRecorder{}, openerFor(&stubSource{fps: 25, hold: true}))

	id, err := m.Start(context.Background(), StartRequest{
		Source: "rtsp://cam",
		Skill:  "person_detection",
		Level:  "high",
	})
	require.NoError(t, err)

	infos := m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "rtsp://cam", infos[0].Source)
	assert.Equal(t, "person_detection", infos[0].Skill)
	assert.Equal(t, "high", infos[0].Level)
	assert.False(t, infos[0].StartedAt.IsZero())

	m.Stop(id)
	waitForIdle(t, m)
}
