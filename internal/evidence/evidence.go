// Package evidence implements the alert evidence and notification path:
// persist the still frame (and, for streams, a short clip materialized
// from the frame buffer), then publish the structured alert record.
//
// Every step is best-effort. A failure to persist or publish is logged and
// counted, never propagated: an unhealthy blob store or broker must not
// take down an otherwise-healthy session.
package evidence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/engine/internal/metrics"
	"github.com/visionedge/engine/internal/notify"
	"github.com/visionedge/engine/internal/storage"
	"github.com/visionedge/engine/internal/video"
	"github.com/visionedge/engine/pkg/models"
)

// Alert types used in evidence object paths.
const (
	ImageAlertType = "image_alert"
	VideoAlertType = "video_alert"
)

// urlTTL is the validity window for resolved evidence URLs.
const urlTTL = time.Hour

// Recorder owns the evidence and notification collaborators.
type Recorder struct {
	store     storage.Store
	publisher notify.Publisher
	encoder   video.ClipEncoder
	topic     string
}

// NewRecorder wires the evidence path.
func NewRecorder(store storage.Store, publisher notify.Publisher, encoder video.ClipEncoder, topic string) *Recorder {
	return &Recorder{
		store:     store,
		publisher: publisher,
		encoder:   encoder,
		topic:     topic,
	}
}

// RecordImageAlert persists the still for a single-image detection, fills
// in the alert's image URL, and publishes the record.
func (r *Recorder) RecordImageAlert(ctx context.Context, alert *models.Alert, still []byte) {
	alert.ImageURL = r.persistStill(ctx, ImageAlertType, still)
	r.publish(ctx, alert)
}

// RecordStreamAlert persists the still and the clip for a stream alert,
// fills in the alert's evidence URLs, and publishes the record.
func (r *Recorder) RecordStreamAlert(ctx context.Context, alert *models.Alert, still []byte, frames []video.Frame, fps int) {
	alert.ImageURL = r.persistStill(ctx, VideoAlertType, still)
	alert.ClipURL = r.persistClip(ctx, frames, fps)
	r.publish(ctx, alert)
}

func (r *Recorder) persistStill(ctx context.Context, alertType string, still []byte) string {
	path, err := r.store.Put(ctx, storage.ObjectPath(alertType, "jpg"), still, "image/jpeg")
	if err != nil {
		metrics.EvidenceFailures.WithLabelValues("image").Inc()
		log.Error().Err(err).Msg("failed to persist alert still")
		return ""
	}
	url, err := r.store.URL(path, urlTTL)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to resolve still URL")
		return ""
	}
	return url
}

func (r *Recorder) persistClip(ctx context.Context, frames []video.Frame, fps int) string {
	if len(frames) == 0 {
		return ""
	}

	clip, err := r.encoder.Encode(frames, fps)
	if err != nil {
		metrics.EvidenceFailures.WithLabelValues("clip").Inc()
		log.Error().Err(err).Int("frames", len(frames)).Msg("failed to encode alert clip")
		return ""
	}

	path, err := r.store.Put(ctx, storage.ObjectPath(VideoAlertType, "mp4"), clip, "video/mp4")
	if err != nil {
		metrics.EvidenceFailures.WithLabelValues("clip").Inc()
		log.Error().Err(err).Msg("failed to persist alert clip")
		return ""
	}
	url, err := r.store.URL(path, urlTTL)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to resolve clip URL")
		return ""
	}
	return url
}

func (r *Recorder) publish(ctx context.Context, alert *models.Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		metrics.EvidenceFailures.WithLabelValues("publish").Inc()
		log.Error().Err(err).Str("alert", alert.ID).Msg("failed to marshal alert")
		return
	}

	if err := r.publisher.Publish(ctx, r.topic, alert.ID, []string{alert.SkillName}, body); err != nil {
		metrics.EvidenceFailures.WithLabelValues("publish").Inc()
		log.Error().Err(err).Str("alert", alert.ID).Msg("failed to publish alert")
		return
	}

	log.Info().
		Str("alert", alert.ID).
		Str("skill", alert.SkillName).
		Str("level", alert.Level).
		Str("session", alert.SessionID).
		Msg("alert recorded")
}
