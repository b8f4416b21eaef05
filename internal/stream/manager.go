// Package stream implements the supervisor for concurrent video-ingestion
// sessions.
//
// Architecture:
//
//	Manager.Start(request)
//	    └─► session registry (one entry per (source, skill) pair)
//	            └─► ingestion goroutine
//	                    ├─► video.Opener → Source
//	                    ├─► FrameBuffer (fps × chunk duration)
//	                    ├─► pipeline executor + alert detector per sample
//	                    └─► evidence recorder on positive alerts
//
// Each session is self-contained: it samples, analyzes, and records in
// source order, independent of every other session. The registry is the
// only shared mutable state and is guarded by a single mutex.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/visionedge/engine/internal/alert"
	"github.com/visionedge/engine/internal/evidence"
	"github.com/visionedge/engine/internal/metrics"
	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/internal/video"
	"github.com/visionedge/engine/pkg/models"
)

// Session lifecycle states.
const (
	StateCreated  = "created"
	StateRunning  = "running"
	StateSleeping = "sleeping"
	StateStopped  = "stopped"
)

const (
	// pacingDelay keeps the read loop from busy-spinning faster than the
	// source supplies frames.
	defaultPacingDelay = 100 * time.Millisecond

	// scheduleRecheck is how often a sleeping session re-evaluates its
	// processing window.
	defaultScheduleRecheck = time.Minute
)

// Invoker runs one skill invocation. Satisfied by *pipeline.Executor.
type Invoker interface {
	Invoke(ctx context.Context, skillName string, payload models.Payload) (models.DetectionResult, error)
}

// Recorder runs the evidence path for stream alerts. Satisfied by
// *evidence.Recorder.
type Recorder interface {
	RecordStreamAlert(ctx context.Context, alert *models.Alert, still []byte, frames []video.Frame, fps int)
}

// StartRequest describes a new stream session.
type StartRequest struct {
	Source   string
	Skill    string
	Level    string
	Interval time.Duration // 0 means the manager default
	ROI      []string
	Schedule string // "HH:MM-HH:MM", empty for always-on
}

// SessionInfo is a point-in-time snapshot of one session for listings.
type SessionInfo struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Skill     string    `json:"skill_name"`
	Level     string    `json:"alert_level"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// session is the supervisor-internal state of one ingestion loop.
type session struct {
	id       string
	source   string
	skill    string
	level    string
	interval time.Duration
	roi      []string
	window   *Window

	cancel    context.CancelFunc
	startedAt time.Time

	mu    sync.Mutex
	state string
}

func (s *session) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *session) snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:        s.id,
		Source:    s.source,
		Skill:     s.skill,
		Level:     s.level,
		State:     s.state,
		StartedAt: s.startedAt,
	}
}

// SessionID derives the deterministic identifier for a (source, skill) pair.
func SessionID(source, skillName string) string {
	return source + "_" + skillName
}

// Manager owns the set of active stream sessions.
type Manager struct {
	catalog  *skill.Catalog
	invoker  Invoker
	recorder Recorder
	open     video.Opener
	clock    clock.Clock

	defaultInterval time.Duration
	chunkDuration   time.Duration
	pacingDelay     time.Duration
	scheduleRecheck time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewManager creates a stream supervisor. defaultInterval is the sampling
// interval applied when a request leaves it unset; chunkDuration is the
// length of evidence clips, which sizes each session's frame buffer.
func NewManager(catalog *skill.Catalog, invoker Invoker, recorder Recorder, open video.Opener, defaultInterval, chunkDuration time.Duration) *Manager {
	return &Manager{
		catalog:         catalog,
		invoker:         invoker,
		recorder:        recorder,
		open:            open,
		clock:           clock.New(),
		defaultInterval: defaultInterval,
		chunkDuration:   chunkDuration,
		pacingDelay:     defaultPacingDelay,
		scheduleRecheck: defaultScheduleRecheck,
		sessions:        make(map[string]*session),
	}
}

// Start validates the request, registers the session, and spawns its
// ingestion loop. It returns the session id immediately without waiting
// for the source to open. ctx must outlive the session; cancelling it
// stops every session started under it.
func (m *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	detector, err := m.detectorFor(req.Skill)
	if err != nil {
		return "", err
	}

	var window *Window
	if req.Schedule != "" {
		window, err = ParseWindow(req.Schedule)
		if err != nil {
			return "", err
		}
	}

	interval := req.Interval
	if interval <= 0 {
		interval = m.defaultInterval
	}

	id := SessionID(req.Source, req.Skill)
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		id:        id,
		source:    req.Source,
		skill:     req.Skill,
		level:     req.Level,
		interval:  interval,
		roi:       req.ROI,
		window:    window,
		cancel:    cancel,
		startedAt: m.clock.Now().UTC(),
		state:     StateCreated,
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		cancel()
		return "", models.ErrAlreadyRunning
	}
	m.sessions[id] = sess
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(sessCtx, sess, detector)
	}()

	log.Info().
		Str("session", id).
		Str("skill", req.Skill).
		Str("level", req.Level).
		Dur("interval", interval).
		Str("schedule", req.Schedule).
		Msg("stream session started")
	return id, nil
}

// Stop signals cancellation to the named session. Stopping an unknown or
// already-stopped id is a no-op.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	log.Info().Str("session", id).Msg("stream session stop requested")
	sess.cancel()
}

// StopAll cancels every active session and waits for their loops to exit
// or for ctx to expire.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	for _, sess := range m.sessions {
		sess.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns snapshots of all active sessions.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.snapshot())
	}
	return out
}

// ActiveCount returns the number of active sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) detectorFor(skillName string) (alert.Detector, error) {
	s, err := m.catalog.Get(skillName)
	if err != nil {
		return nil, err
	}
	return s.Detector, nil
}

// remove deregisters a session on loop exit. Runs on every exit path.
func (m *Manager) remove(sess *session) {
	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.mu.Unlock()
	sess.setState(StateStopped)
	metrics.ActiveSessions.Dec()
}

// run is the per-session ingestion loop.
func (m *Manager) run(ctx context.Context, sess *session, detector alert.Detector) {
	defer m.remove(sess)

	src, err := m.open(ctx, sess.source)
	if err != nil {
		log.Error().Err(err).
			Str("session", sess.id).
			Str("source", sess.source).
			Msg("failed to open video source")
		return
	}
	defer src.Close()

	fps := src.FPS()
	buffer := NewFrameBuffer(fps * int(m.chunkDuration.Seconds()))
	sess.setState(StateRunning)

	log.Info().
		Str("session", sess.id).
		Int("fps", fps).
		Int("buffer", buffer.Cap()).
		Msg("ingestion loop running")

	var lastSample time.Duration
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session", sess.id).Msg("ingestion loop cancelled")
			return
		default:
		}

		// Outside the processing window: withhold sampling, keep the
		// session alive, recheck roughly once per minute.
		if sess.window != nil && !sess.window.Contains(m.clock.Now()) {
			sess.setState(StateSleeping)
			select {
			case <-ctx.Done():
				return
			case <-m.clock.After(m.scheduleRecheck):
			}
			continue
		}
		sess.setState(StateRunning)

		frame, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Str("session", sess.id).Msg("video source exhausted")
			} else {
				log.Error().Err(err).Str("session", sess.id).Msg("frame read failed")
			}
			return
		}

		buffer.Push(frame)
		metrics.FramesRead.WithLabelValues(sess.skill).Inc()

		if frame.Elapsed-lastSample >= sess.interval {
			lastSample = frame.Elapsed
			m.processFrame(ctx, sess, detector, buffer, frame, fps)
		}

		// Pace the loop so it cannot busy-spin faster than the source.
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.pacingDelay):
		}
	}
}

// processFrame runs one sampled frame through the executor and, on a
// positive alert, the evidence path. Evidence capture blocks the loop so
// that alerts within a session stay in source order.
func (m *Manager) processFrame(ctx context.Context, sess *session, detector alert.Detector, buffer *FrameBuffer, frame video.Frame, fps int) {
	metrics.FramesSampled.WithLabelValues(sess.skill).Inc()

	result, err := m.invoker.Invoke(ctx, sess.skill, models.Payload{Image: frame.JPEG})
	if err != nil {
		var infErr *models.InferenceError
		if errors.As(err, &infErr) {
			metrics.InferenceFailures.WithLabelValues(infErr.Model).Inc()
		}
		log.Error().Err(err).Str("session", sess.id).Msg("skill invocation failed")
		return
	}

	if len(result.Detections) == 0 || !detector.Evaluate(result.Detections, sess.level) {
		return
	}

	metrics.AlertsTriggered.WithLabelValues(sess.skill, sess.level).Inc()
	record := models.Alert{
		ID:         uuid.NewString(),
		SessionID:  sess.id,
		SkillName:  sess.skill,
		Level:      sess.level,
		Timestamp:  m.clock.Now().UTC(),
		Detections: result.Detections,
	}
	m.recorder.RecordStreamAlert(ctx, &record, frame.JPEG, buffer.Snapshot(), fps)
}

// Ensure the evidence recorder satisfies the supervisor's contract.
var _ Recorder = (*evidence.Recorder)(nil)
