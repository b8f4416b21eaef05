// Package alert implements the rule engine that turns raw per-frame
// detections into a boolean alert decision.
//
// Every detector is a pure predicate over a detection list and a severity
// level. Severity strings are case-insensitive; an unrecognized level falls
// back to "medium" semantics in every implementation so that the engine
// behaves identically regardless of which detector a skill selects.
package alert

import (
	"strings"

	"github.com/visionedge/engine/pkg/models"
)

// Severity levels understood by every detector.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Detector decides whether a detection list warrants an alert at the
// requested severity level. Implementations are stateless or parameterized
// only by fixed thresholds, and are safe for concurrent use.
type Detector interface {
	Evaluate(detections []models.Detection, level string) bool
}

// normalizeLevel lowercases the level and maps unrecognized values to medium.
func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case LevelHigh:
		return LevelHigh
	case LevelLow:
		return LevelLow
	default:
		return LevelMedium
	}
}

// ── Presence ────────────────────────────────────────────────

// Presence alerts when any detection carries the configured class,
// independent of the severity level.
type Presence struct {
	Class string
}

func (p *Presence) Evaluate(detections []models.Detection, _ string) bool {
	for _, d := range detections {
		if d.Class == p.Class {
			return true
		}
	}
	return false
}

// ── Confidence threshold by class ───────────────────────────

// ConfidenceThreshold alerts when any detection of an alert class meets the
// per-level confidence floor.
type ConfidenceThreshold struct {
	Classes map[string]bool
	Floors  map[string]float64
}

// NewConfidenceThreshold builds a detector with the standard floors
// (high ≥ 0.7, medium ≥ 0.5, low ≥ 0.3) over the given alert classes.
func NewConfidenceThreshold(classes ...string) *ConfidenceThreshold {
	set := make(map[string]bool, len(classes))
	for _, c := range classes {
		set[c] = true
	}
	return &ConfidenceThreshold{
		Classes: set,
		Floors: map[string]float64{
			LevelHigh:   0.7,
			LevelMedium: 0.5,
			LevelLow:    0.3,
		},
	}
}

func (c *ConfidenceThreshold) Evaluate(detections []models.Detection, level string) bool {
	floor := c.Floors[normalizeLevel(level)]
	for _, d := range detections {
		if c.Classes[d.Class] && d.Confidence >= floor {
			return true
		}
	}
	return false
}

// ── Attribute flag ──────────────────────────────────────────

// AttributeFlag alerts when any detection carries the configured boolean
// attribute set to true. Class, when non-empty, restricts which detections
// are considered.
type AttributeFlag struct {
	Class string
	Flag  string
}

func (a *AttributeFlag) Evaluate(detections []models.Detection, _ string) bool {
	for _, d := range detections {
		if a.Class != "" && d.Class != a.Class {
			continue
		}
		if flag, ok := d.Attr(a.Flag).(bool); ok && flag {
			return true
		}
	}
	return false
}

// ── Count threshold ─────────────────────────────────────────

// CountThreshold alerts when the count of detections of the configured class
// meets or exceeds the per-level threshold.
type CountThreshold struct {
	Class      string
	Thresholds map[string]int
}

// NewCountThreshold builds a detector with the standard density thresholds
// (high 20, medium 10, low 5) for the given class.
func NewCountThreshold(class string) *CountThreshold {
	return &CountThreshold{
		Class: class,
		Thresholds: map[string]int{
			LevelHigh:   20,
			LevelMedium: 10,
			LevelLow:    5,
		},
	}
}

func (c *CountThreshold) Evaluate(detections []models.Detection, level string) bool {
	count := 0
	for _, d := range detections {
		if d.Class == c.Class {
			count++
		}
	}
	return count >= c.Thresholds[normalizeLevel(level)]
}

// ── Ranked attribute ────────────────────────────────────────

// RankedAttribute maps each possible attribute value to a severity level and
// alerts when any detection carries a value whose rank meets or exceeds the
// rank implied by the requested level. Values absent from Levels rank as low.
type RankedAttribute struct {
	Attribute string
	Levels    map[string]string
}

var levelRanks = map[string]int{
	LevelHigh:   3,
	LevelMedium: 2,
	LevelLow:    1,
}

func (r *RankedAttribute) Evaluate(detections []models.Detection, level string) bool {
	required := levelRanks[normalizeLevel(level)]
	for _, d := range detections {
		value, ok := d.Attr(r.Attribute).(string)
		if !ok {
			continue
		}
		rank := levelRanks[LevelLow]
		if lvl, known := r.Levels[value]; known {
			rank = levelRanks[normalizeLevel(lvl)]
		}
		if rank >= required {
			return true
		}
	}
	return false
}

// ── Attribute threshold ─────────────────────────────────────

// AttributeThreshold alerts when a detection of the configured class carries
// a numeric attribute strictly above the fixed threshold. Used for speed
// violations, where the limit does not vary with the severity level.
type AttributeThreshold struct {
	Class     string
	Attribute string
	Threshold float64
}

func (a *AttributeThreshold) Evaluate(detections []models.Detection, _ string) bool {
	for _, d := range detections {
		if d.Class != a.Class {
			continue
		}
		if v, ok := toFloat(d.Attr(a.Attribute)); ok && v > a.Threshold {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
