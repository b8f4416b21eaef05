// Package models defines the shared data model for the VisionEdge engine:
// model descriptors, pipeline topologies, detections, alerts, and the error
// taxonomy used across packages.
package models

import "time"

// ── Model descriptors ───────────────────────────────────────

// PreprocessConfig describes how a frame is prepared before it is sent
// to a model endpoint.
type PreprocessConfig struct {
	ResizeMode     string    `json:"resize_mode,omitempty"`
	Mean           []float64 `json:"mean,omitempty"`
	Std            []float64 `json:"std,omitempty"`
	SequenceLength int       `json:"sequence_length,omitempty"`
}

// PostprocessConfig describes thresholds applied to a model's raw output.
type PostprocessConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	NMSThreshold        float64 `json:"nms_threshold,omitempty"`
	MinSpeed            float64 `json:"min_speed,omitempty"`
}

// ModelDescriptor is the static description of one serving model.
// Descriptors are immutable and owned by the skill that declares them.
type ModelDescriptor struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Endpoint    string            `json:"endpoint"`
	InputShape  []int             `json:"input_shape"`
	Preprocess  PreprocessConfig  `json:"preprocess"`
	Postprocess PostprocessConfig `json:"postprocess"`
}

// ── Pipeline topology ───────────────────────────────────────

// TopologyKind selects how a skill's models are driven.
type TopologyKind string

const (
	TopologySequential TopologyKind = "sequential"
	TopologyCascade    TopologyKind = "cascade"
	TopologyParallel   TopologyKind = "parallel"
)

// CascadeStep is one step of a cascade topology. Input, when set, must
// name an output key produced by an earlier step.
type CascadeStep struct {
	Model  string `json:"model"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// Topology is the execution shape governing how a skill's models are invoked.
type Topology struct {
	Kind TopologyKind `json:"kind"`

	// OutputAsInput makes each sequential model's raw response the next
	// model's input. Only meaningful for TopologySequential.
	OutputAsInput bool `json:"output_as_input,omitempty"`

	// Steps drive a cascade topology. Only meaningful for TopologyCascade.
	Steps []CascadeStep `json:"steps,omitempty"`
}

// ── Detections ──────────────────────────────────────────────

// BoundingBox is the geometry of one detection in pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one recognized object or event.
type Detection struct {
	ID         string         `json:"id,omitempty"`
	Class      string         `json:"class_name"`
	Confidence float64        `json:"confidence"`
	Box        BoundingBox    `json:"bbox"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Attr returns the named attribute, or nil when absent.
func (d Detection) Attr(name string) any {
	if d.Attributes == nil {
		return nil
	}
	return d.Attributes[name]
}

// SetAttr sets the named attribute, allocating the map on first use.
func (d *Detection) SetAttr(name string, value any) {
	if d.Attributes == nil {
		d.Attributes = make(map[string]any)
	}
	d.Attributes[name] = value
}

// DetectionResult is the assembled output of one skill invocation.
// It is ephemeral: produced per invocation and never persisted.
type DetectionResult struct {
	SkillName  string         `json:"skill_name"`
	Detections []Detection    `json:"detections"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ── Inference exchange ──────────────────────────────────────

// InferenceResponse is the raw response of one model call. Detections carry
// the primary output; Entries is the keyed per-identity map used by
// two-stage enrichment (e.g. vehicle id → {"speed": 72}).
type InferenceResponse struct {
	Detections []Detection               `json:"detections,omitempty"`
	Entries    map[string]map[string]any `json:"entries,omitempty"`
}

// Payload is the input to one model call. For cascade-derived inputs the
// original image is combined with the named prior output and the next
// model's preprocess configuration.
type Payload struct {
	Image      []byte             `json:"image,omitempty"`
	Prior      *InferenceResponse `json:"prior,omitempty"`
	Preprocess *PreprocessConfig  `json:"preprocess,omitempty"`
}

// ── Alerts ──────────────────────────────────────────────────

// Alert is the structured record published when a detection trips a rule.
type Alert struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id,omitempty"`
	SkillName  string      `json:"skill_name"`
	Level      string      `json:"alert_level"`
	Timestamp  time.Time   `json:"timestamp"`
	ImageURL   string      `json:"image_url,omitempty"`
	ClipURL    string      `json:"video_url,omitempty"`
	Detections []Detection `json:"detections"`
}

// ── Boundary responses ──────────────────────────────────────

// DetectionResponse is what the boundary surface returns for both image
// and stream requests.
type DetectionResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
