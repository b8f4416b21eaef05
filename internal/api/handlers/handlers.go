// Package handlers implements the HTTP handlers for the engine's REST API.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/engine/internal/vision"
	"github.com/visionedge/engine/pkg/models"
)

// maxImageBytes bounds uploaded image payloads (16 MiB).
const maxImageBytes = 16 << 20

// Handlers carries the service dependencies for all routes.
type Handlers struct {
	svc *vision.Service
}

// New creates the handler set.
func New(svc *vision.Service) *Handlers {
	return &Handlers{svc: svc}
}

type detectImageRequest struct {
	Skill string `json:"skill_name"`
	Level string `json:"alert_level"`
	Image string `json:"image"` // base64-encoded
}

// DetectImage handles POST /api/v1/detect/image.
func (h *Handlers) DetectImage(w http.ResponseWriter, r *http.Request) {
	var req detectImageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Skill == "" {
		writeError(w, http.StatusBadRequest, "skill_name is required")
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image must be non-empty base64")
		return
	}

	res := h.svc.DetectImage(r.Context(), vision.ImageRequest{
		Skill: req.Skill,
		Level: req.Level,
		Image: image,
	})

	status := http.StatusOK
	if res.Status == models.StatusError {
		status = http.StatusUnprocessableEntity
		if res.Message == "unknown skill" {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, res)
}

type startStreamRequest struct {
	Source   string   `json:"source"`
	Skill    string   `json:"skill_name"`
	Level    string   `json:"alert_level"`
	Interval string   `json:"frame_interval,omitempty"`
	ROI      []string `json:"roi,omitempty"`
	Schedule string   `json:"schedule,omitempty"`
}

// StartStream handles POST /api/v1/streams.
func (h *Handlers) StartStream(w http.ResponseWriter, r *http.Request) {
	var req startStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" || req.Skill == "" {
		writeError(w, http.StatusBadRequest, "source and skill_name are required")
		return
	}

	var interval time.Duration
	if req.Interval != "" {
		var err error
		interval, err = time.ParseDuration(req.Interval)
		if err != nil {
			writeError(w, http.StatusBadRequest, "frame_interval: bad duration")
			return
		}
	}

	// Sessions must outlive the request; detach from the request context.
	res := h.svc.DetectVideoStream(context.WithoutCancel(r.Context()), vision.StreamRequest{
		Source:   req.Source,
		Skill:    req.Skill,
		Level:    req.Level,
		Interval: interval,
		ROI:      req.ROI,
		Schedule: req.Schedule,
	})

	status := http.StatusAccepted
	if res.Status == models.StatusError {
		status = http.StatusConflict
		if res.Message == models.ErrSkillNotFound.Error() {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, res)
}

// ListStreams handles GET /api/v1/streams.
func (h *Handlers) ListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": h.svc.Sessions(),
	})
}

// StopStream handles DELETE /api/v1/streams?id=<session-id>.
func (h *Handlers) StopStream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.StopStream(id))
}

// ListSkills handles GET /api/v1/skills.
func (h *Handlers) ListSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"skills": h.svc.Skills(),
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(io.LimitReader(r.Body, maxImageBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"status":  models.StatusError,
		"message": msg,
	})
}
