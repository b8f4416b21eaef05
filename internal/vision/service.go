// Package vision is the service boundary callers interact with: one-shot
// image detection and the lifecycle of continuous stream analysis. It
// translates outcomes into uniform request-scoped responses and leaves
// transport concerns to the API layer.
package vision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/internal/stream"
	"github.com/visionedge/engine/pkg/models"
)

// Invoker runs one skill invocation. Satisfied by *pipeline.Executor.
type Invoker interface {
	Invoke(ctx context.Context, skillName string, payload models.Payload) (models.DetectionResult, error)
}

// ImageRecorder runs the evidence path for single-image alerts. Satisfied
// by *evidence.Recorder.
type ImageRecorder interface {
	RecordImageAlert(ctx context.Context, alert *models.Alert, still []byte)
}

// Supervisor manages continuous stream sessions. Satisfied by
// *stream.Manager.
type Supervisor interface {
	Start(ctx context.Context, req stream.StartRequest) (string, error)
	Stop(id string)
	List() []stream.SessionInfo
}

// ImageRequest is a one-shot detection over a single image.
type ImageRequest struct {
	Skill string
	Level string
	Image []byte
}

// ImageResult pairs the uniform response envelope with the detections for
// callers that want them inline.
type ImageResult struct {
	models.DetectionResponse
	Detections []models.Detection `json:"detections,omitempty"`
}

// StreamRequest starts continuous analysis of a video source.
type StreamRequest struct {
	Source   string
	Skill    string
	Level    string
	Interval time.Duration
	ROI      []string
	Schedule string
}

// Service is the engine's front door.
type Service struct {
	catalog    *skill.Catalog
	invoker    Invoker
	recorder   ImageRecorder
	supervisor Supervisor
}

// NewService wires the detection entry points.
func NewService(catalog *skill.Catalog, invoker Invoker, recorder ImageRecorder, supervisor Supervisor) *Service {
	return &Service{
		catalog:    catalog,
		invoker:    invoker,
		recorder:   recorder,
		supervisor: supervisor,
	}
}

// DetectImage runs the named skill over one image. Whenever the pipeline
// yields detections, the evidence path runs inline before the response is
// returned; the per-skill alert rule only gates continuous streams, where
// frames without a rule match are routine. Pipeline failures yield an
// error-status response, never a panic or a bare error.
func (s *Service) DetectImage(ctx context.Context, req ImageRequest) ImageResult {
	requestID := uuid.NewString()

	if _, err := s.catalog.Get(req.Skill); err != nil {
		return errorResult(requestID, err)
	}

	result, err := s.invoker.Invoke(ctx, req.Skill, models.Payload{Image: req.Image})
	if err != nil {
		log.Error().Err(err).
			Str("request", requestID).
			Str("skill", req.Skill).
			Msg("image detection failed")
		return errorResult(requestID, err)
	}

	if len(result.Detections) > 0 {
		record := models.Alert{
			ID:         uuid.NewString(),
			SessionID:  requestID,
			SkillName:  req.Skill,
			Level:      req.Level,
			Timestamp:  time.Now().UTC(),
			Detections: result.Detections,
		}
		s.recorder.RecordImageAlert(ctx, &record, req.Image)
	}

	return ImageResult{
		DetectionResponse: models.DetectionResponse{
			RequestID: requestID,
			Status:    models.StatusSuccess,
			Message:   "detection completed",
		},
		Detections: result.Detections,
	}
}

// DetectVideoStream starts continuous analysis and returns immediately
// with the session id as the request id.
func (s *Service) DetectVideoStream(ctx context.Context, req StreamRequest) models.DetectionResponse {
	id, err := s.supervisor.Start(ctx, stream.StartRequest{
		Source:   req.Source,
		Skill:    req.Skill,
		Level:    req.Level,
		Interval: req.Interval,
		ROI:      req.ROI,
		Schedule: req.Schedule,
	})
	if err != nil {
		return models.DetectionResponse{
			RequestID: stream.SessionID(req.Source, req.Skill),
			Status:    models.StatusError,
			Message:   err.Error(),
		}
	}
	return models.DetectionResponse{
		RequestID: id,
		Status:    models.StatusSuccess,
		Message:   "stream analysis started",
	}
}

// StopStream requests shutdown of the named session. Unknown ids succeed;
// stopping is idempotent.
func (s *Service) StopStream(id string) models.DetectionResponse {
	s.supervisor.Stop(id)
	return models.DetectionResponse{
		RequestID: id,
		Status:    models.StatusSuccess,
		Message:   "stream stop requested",
	}
}

// Sessions lists active stream sessions.
func (s *Service) Sessions() []stream.SessionInfo {
	return s.supervisor.List()
}

// Skills lists the registered skill names.
func (s *Service) Skills() []string {
	return s.catalog.List()
}

func errorResult(requestID string, err error) ImageResult {
	msg := err.Error()
	if errors.Is(err, models.ErrSkillNotFound) {
		msg = "unknown skill"
	}
	return ImageResult{
		DetectionResponse: models.DetectionResponse{
			RequestID: requestID,
			Status:    models.StatusError,
			Message:   msg,
		},
	}
}
