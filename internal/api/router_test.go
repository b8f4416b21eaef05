package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionedge/engine/internal/alert"
	"github.com/visionedge/engine/internal/api"
	"github.com/visionedge/engine/internal/api/handlers"
	"github.com/visionedge/engine/internal/config"
	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/internal/stream"
	"github.com/visionedge/engine/internal/vision"
	"github.com/visionedge/engine/pkg/models"
)

type stubInvoker struct {
	result models.DetectionResult
}

func (s *stubInvoker) Invoke(_ context.Context, skillName string, _ models.Payload) (models.DetectionResult, error) {
	res := s.result
	res.SkillName = skillName
	return res, nil
}

type stubRecorder struct {
	alerts int
}

func (s *stubRecorder) RecordImageAlert(context.Context, *models.Alert, []byte) {
	s.alerts++
}

type stubSupervisor struct {
	startErr error
	stopped  []string
	sessions []stream.SessionInfo
}

func (s *stubSupervisor) Start(_ context.Context, req stream.StartRequest) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return stream.SessionID(req.Source, req.Skill), nil
}

func (s *stubSupervisor) Stop(id string) { s.stopped = append(s.stopped, id) }

func (s *stubSupervisor) List() []stream.SessionInfo { return s.sessions }

func newTestRouter(inv *stubInvoker, rec *stubRecorder, sup *stubSupervisor) http.Handler {
	c := skill.NewCatalog()
	c.Register(&skill.Skill{
		Name:     "person_detection",
		Detector: &alert.Presence{Class: "person"},
	})
	svc := vision.NewService(c, inv, rec, sup)
	return api.NewRouter(config.Load(), handlers.New(svc), "")
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndVersion(t *testing.T) {
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, &stubSupervisor{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "visionedge-engine")
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, &stubSupervisor{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListSkills(t *testing.T) {
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, &stubSupervisor{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Skills []string `json:"skills"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"person_detection"}, body.Skills)
}

func TestDetectImage(t *testing.T) {
	inv := &stubInvoker{result: models.DetectionResult{
		Detections: []models.Detection{{Class: "person", Confidence: 0.9}},
	}}
	rec := &stubRecorder{}
	router := newTestRouter(inv, rec, &stubSupervisor{})

	w := postJSON(t, router, "/api/v1/detect/image", map[string]string{
		"skill_name":  "person_detection",
		"alert_level": "medium",
		"image":       base64.StdEncoding.EncodeToString([]byte("jpeg")),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res vision.ImageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, models.StatusSuccess, res.Status)
	assert.Len(t, res.Detections, 1)
	assert.Equal(t, 1, rec.alerts)
}

func TestDetectImageValidation(t *testing.T) {
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, &stubSupervisor{})

	// Missing skill
	w := postJSON(t, router, "/api/v1/detect/image", map[string]string{
		"image": base64.StdEncoding.EncodeToString([]byte("jpeg")),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bad base64
	w = postJSON(t, router, "/api/v1/detect/image", map[string]string{
		"skill_name": "person_detection",
		"image":      "not-base64!!!",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown skill
	w = postJSON(t, router, "/api/v1/detect/image", map[string]string{
		"skill_name": "nope",
		"image":      base64.StdEncoding.EncodeToString([]byte("jpeg")),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamLifecycle(t *testing.T) {
	sup := &stubSupervisor{}
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, sup)

	w := postJSON(t, router, "/api/v1/streams", map[string]string{
		"source":      "rtsp://cam",
		"skill_name":  "person_detection",
		"alert_level": "high",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var res models.DetectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "rtsp://cam_person_detection", res.RequestID)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/streams?id="+url.QueryEscape(res.RequestID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"rtsp://cam_person_detection"}, sup.stopped)
}

func TestStartStreamConflict(t *testing.T) {
	sup := &stubSupervisor{startErr: models.ErrAlreadyRunning}
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, sup)

	w := postJSON(t, router, "/api/v1/streams", map[string]string{
		"source":     "rtsp://cam",
		"skill_name": "person_detection",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartStreamValidation(t *testing.T) {
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, &stubSupervisor{})

	w := postJSON(t, router, "/api/v1/streams", map[string]string{
		"skill_name": "person_detection",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/v1/streams", map[string]string{
		"source":         "rtsp://cam",
		"skill_name":     "person_detection",
		"frame_interval": "whenever",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListStreams(t *testing.T) {
	sup := &stubSupervisor{sessions: []stream.SessionInfo{
		{ID: "rtsp://cam_person_detection", Skill: "person_detection", State: stream.StateRunning},
	}}
	router := newTestRouter(&stubInvoker{}, &stubRecorder{}, sup)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/streams", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []stream.SessionInfo `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, stream.StateRunning, body.Sessions[0].State)
}
