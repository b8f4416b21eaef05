// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions is the number of stream sessions currently running.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionedge_active_sessions",
		Help: "Number of active video stream sessions",
	})

	// FramesRead counts frames read from video sources.
	FramesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionedge_frames_read_total",
		Help: "Frames read from video sources",
	}, []string{"skill"})

	// FramesSampled counts frames submitted to the pipeline executor.
	FramesSampled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionedge_frames_sampled_total",
		Help: "Frames sampled for analysis",
	}, []string{"skill"})

	// AlertsTriggered counts positive alert decisions.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionedge_alerts_total",
		Help: "Alerts triggered",
	}, []string{"skill", "level"})

	// EvidenceFailures counts evidence persist/publish failures. The
	// evidence path never propagates errors, so this counter and the logs
	// are the only failure signal.
	EvidenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionedge_evidence_failures_total",
		Help: "Evidence persistence and publish failures",
	}, []string{"stage"})

	// InferenceFailures counts aborted invocations by failing model.
	InferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionedge_inference_failures_total",
		Help: "Inference backend call failures",
	}, []string{"model"})
)
