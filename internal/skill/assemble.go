package skill

import (
	"fmt"

	"github.com/visionedge/engine/pkg/models"
)

// Density tiers emitted by the count-only assembler. Fixed constants of the
// policy, not configurable per call.
const (
	densityHighCount   = 20
	densityMediumCount = 10
)

// RegionCheck reports whether a bounding box falls inside a restricted
// region. The default implementation treats every box as inside; real
// geometry is supplied by deployments that configure region definitions.
type RegionCheck func(box models.BoundingBox) bool

// AlwaysInRegion is the default region predicate.
func AlwaysInRegion(models.BoundingBox) bool { return true }

// AssembleConcat is the default assembly policy: concatenate every
// response's detection list in order.
func AssembleConcat(name string) Assembler {
	return func(responses []models.InferenceResponse) (models.DetectionResult, error) {
		result := models.DetectionResult{SkillName: name, Detections: []models.Detection{}}
		for _, r := range responses {
			result.Detections = append(result.Detections, r.Detections...)
		}
		return result, nil
	}
}

// AssembleEnrich implements two-stage enrichment: the first response carries
// detections, the second a keyed per-identity entry map. For each detection
// with a matching entry, the named fields are copied into the detection's
// attribute map under the mapped attribute names; detections without a
// matching entry pass through unchanged. Requires exactly two responses.
func AssembleEnrich(name string, fields map[string]string) Assembler {
	return func(responses []models.InferenceResponse) (models.DetectionResult, error) {
		if len(responses) != 2 {
			return models.DetectionResult{}, &models.AssemblyError{
				Skill:  name,
				Reason: fmt.Sprintf("expected 2 responses, got %d", len(responses)),
			}
		}

		entries := responses[1].Entries
		result := models.DetectionResult{SkillName: name, Detections: []models.Detection{}}
		for _, d := range responses[0].Detections {
			if entry, ok := entries[d.ID]; ok {
				for field, attr := range fields {
					if v, present := entry[field]; present {
						d.SetAttr(attr, v)
					}
				}
			}
			result.Detections = append(result.Detections, d)
		}
		return result, nil
	}
}

// AssembleRegion attaches an "in_restricted_area" flag to every detection
// using the supplied region predicate.
func AssembleRegion(name string, inRegion RegionCheck) Assembler {
	if inRegion == nil {
		inRegion = AlwaysInRegion
	}
	return func(responses []models.InferenceResponse) (models.DetectionResult, error) {
		result := models.DetectionResult{SkillName: name, Detections: []models.Detection{}}
		for _, r := range responses {
			for _, d := range r.Detections {
				d.SetAttr("in_restricted_area", inRegion(d.Box))
				result.Detections = append(result.Detections, d)
			}
		}
		return result, nil
	}
}

// AssembleCount filters detections to the given class and emits a metadata
// block with the total count and the derived density tier.
func AssembleCount(name, class string) Assembler {
	return func(responses []models.InferenceResponse) (models.DetectionResult, error) {
		result := models.DetectionResult{SkillName: name, Detections: []models.Detection{}}
		for _, r := range responses {
			for _, d := range r.Detections {
				if d.Class == class {
					result.Detections = append(result.Detections, d)
				}
			}
		}

		count := len(result.Detections)
		tier := "low"
		switch {
		case count >= densityHighCount:
			tier = "high"
		case count >= densityMediumCount:
			tier = "medium"
		}
		result.Metadata = map[string]any{
			"total_count":   count,
			"density_level": tier,
		}
		return result, nil
	}
}
