package skill

import (
	"github.com/visionedge/engine/internal/alert"
	"github.com/visionedge/engine/pkg/models"
)

// Built-in skill names.
const (
	PersonDetection    = "person_detection"
	VehicleDetection   = "vehicle_detection"
	FireSmokeDetection = "fire_smoke_detection"
	IntrusionDetection = "intrusion_detection"
	CrowdDensity       = "crowd_density"
	AbnormalBehavior   = "abnormal_behavior"
)

// SpeedLimit is the fixed km/h threshold for vehicle speed alerts.
const SpeedLimit = 60.0

// yolov5 is the shared person/vehicle detector descriptor, parameterized by
// serving endpoint and confidence threshold.
func yolov5(endpoint string, confidence float64) models.ModelDescriptor {
	return models.ModelDescriptor{
		Name:       "yolov5",
		Version:    "v1",
		Endpoint:   endpoint,
		InputShape: []int{640, 640, 3},
		Preprocess: models.PreprocessConfig{
			ResizeMode: "letterbox",
			Mean:       []float64{0.485, 0.456, 0.406},
			Std:        []float64{0.229, 0.224, 0.225},
		},
		Postprocess: models.PostprocessConfig{
			ConfidenceThreshold: confidence,
			NMSThreshold:        0.45,
		},
	}
}

// NewBuiltinCatalog constructs the standard skill set. The regionCheck
// predicate feeds intrusion detection; pass nil for the always-true default.
func NewBuiltinCatalog(regionCheck RegionCheck) *Catalog {
	c := NewCatalog()

	c.Register(&Skill{
		Name:     PersonDetection,
		Models:   []models.ModelDescriptor{yolov5("person-detection-predictor", 0.5)},
		Topology: models.Topology{Kind: models.TopologySequential},
		Detector: &alert.Presence{Class: "person"},
		Assemble: AssembleConcat(PersonDetection),
	})

	c.Register(&Skill{
		Name: VehicleDetection,
		Models: []models.ModelDescriptor{
			yolov5("vehicle-detection-predictor", 0.5),
			{
				Name:        "vehicle_speed",
				Version:     "v1",
				Endpoint:    "vehicle-speed-predictor",
				InputShape:  []int{224, 224, 3},
				Preprocess:  models.PreprocessConfig{ResizeMode: "crop"},
				Postprocess: models.PostprocessConfig{MinSpeed: 0.0},
			},
		},
		Topology: models.Topology{
			Kind: models.TopologyCascade,
			Steps: []models.CascadeStep{
				{Model: "yolov5", Output: "vehicles"},
				{Model: "vehicle_speed", Input: "vehicles", Output: "speeds"},
			},
		},
		Detector: &alert.AttributeThreshold{Class: "vehicle", Attribute: "speed", Threshold: SpeedLimit},
		Assemble: AssembleEnrich(VehicleDetection, map[string]string{"speed": "speed"}),
	})

	c.Register(&Skill{
		Name: FireSmokeDetection,
		Models: []models.ModelDescriptor{
			{
				Name:       "fire_smoke_detector",
				Version:    "v1",
				Endpoint:   "fire-smoke-predictor",
				InputShape: []int{416, 416, 3},
				Preprocess: models.PreprocessConfig{ResizeMode: "letterbox"},
				Postprocess: models.PostprocessConfig{
					ConfidenceThreshold: 0.6,
					NMSThreshold:        0.5,
				},
			},
		},
		Topology: models.Topology{Kind: models.TopologySequential},
		Detector: alert.NewConfidenceThreshold("fire", "smoke"),
		Assemble: AssembleConcat(FireSmokeDetection),
	})

	c.Register(&Skill{
		Name:     IntrusionDetection,
		Models:   []models.ModelDescriptor{yolov5("person-detection-predictor", 0.5)},
		Topology: models.Topology{Kind: models.TopologySequential},
		Detector: &alert.AttributeFlag{Class: "person", Flag: "in_restricted_area"},
		Assemble: AssembleRegion(IntrusionDetection, regionCheck),
	})

	c.Register(&Skill{
		Name: CrowdDensity,
		// Lower confidence floor so dense scenes keep marginal detections.
		Models:   []models.ModelDescriptor{yolov5("person-detection-predictor", 0.3)},
		Topology: models.Topology{Kind: models.TopologySequential},
		Detector: alert.NewCountThreshold("person"),
		Assemble: AssembleCount(CrowdDensity, "person"),
	})

	c.Register(&Skill{
		Name: AbnormalBehavior,
		Models: []models.ModelDescriptor{
			yolov5("person-detection-predictor", 0.5),
			{
				Name:       "behavior_classifier",
				Version:    "v1",
				Endpoint:   "behavior-classifier-predictor",
				InputShape: []int{224, 224, 3},
				Preprocess: models.PreprocessConfig{
					ResizeMode:     "crop",
					SequenceLength: 16,
				},
				Postprocess: models.PostprocessConfig{ConfidenceThreshold: 0.7},
			},
		},
		Topology: models.Topology{
			Kind: models.TopologyCascade,
			Steps: []models.CascadeStep{
				{Model: "yolov5", Output: "persons"},
				{Model: "behavior_classifier", Input: "persons", Output: "behaviors"},
			},
		},
		Detector: &alert.RankedAttribute{
			Attribute: "behavior",
			Levels: map[string]string{
				"fighting":  alert.LevelHigh,
				"falling":   alert.LevelHigh,
				"running":   alert.LevelMedium,
				"loitering": alert.LevelLow,
			},
		},
		Assemble: AssembleEnrich(AbnormalBehavior, map[string]string{
			"behavior":   "behavior",
			"confidence": "behavior_confidence",
		}),
	})

	return c
}
