// Package pipeline implements the executor that drives a skill's models
// according to its topology and assembles the per-skill result.
//
// Flow:
//
//	Invoke(skillName, payload)
//	    └─► Catalog.Get(skillName)
//	            ├─► sequential: one call per model in declared order
//	            ├─► cascade:    named intermediate outputs feed later steps
//	            └─► parallel:   all models concurrently, same payload
//	                    └─► skill.Assemble(responses) → DetectionResult
//
// Any backend failure aborts the whole invocation; there is no
// partial-success mode and the executor never retries.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/visionedge/engine/internal/inference"
	"github.com/visionedge/engine/internal/skill"
	"github.com/visionedge/engine/pkg/models"
)

var tracer = otel.Tracer("visionedge-engine")

// Executor runs skill invocations against the inference backend.
type Executor struct {
	catalog *skill.Catalog
	backend inference.Backend
}

// NewExecutor creates a pipeline executor.
func NewExecutor(catalog *skill.Catalog, backend inference.Backend) *Executor {
	return &Executor{catalog: catalog, backend: backend}
}

// Invoke looks up the skill, drives its models per the topology, and
// returns the assembled detection result.
func (e *Executor) Invoke(ctx context.Context, skillName string, payload models.Payload) (models.DetectionResult, error) {
	s, err := e.catalog.Get(skillName)
	if err != nil {
		return models.DetectionResult{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("skill", skillName),
		attribute.String("topology", string(s.Topology.Kind)),
		attribute.Int("models", len(s.Models)),
	)

	var responses []models.InferenceResponse
	switch s.Topology.Kind {
	case models.TopologySequential:
		responses, err = e.runSequential(ctx, s, payload)
	case models.TopologyCascade:
		responses, err = e.runCascade(ctx, s, payload)
	case models.TopologyParallel:
		responses, err = e.runParallel(ctx, s, payload)
	default:
		err = &models.ConfigError{
			Skill:  s.Name,
			Reason: fmt.Sprintf("unsupported topology %q", s.Topology.Kind),
		}
	}
	if err != nil {
		span.RecordError(err)
		return models.DetectionResult{}, err
	}

	result, err := s.Assemble(responses)
	if err != nil {
		span.RecordError(err)
		return models.DetectionResult{}, err
	}

	log.Debug().
		Str("skill", skillName).
		Int("detections", len(result.Detections)).
		Msg("skill invocation complete")
	return result, nil
}

// runSequential calls each model in declared order. When the topology sets
// OutputAsInput, the raw prior response is passed through unchanged as the
// next model's input.
func (e *Executor) runSequential(ctx context.Context, s *skill.Skill, payload models.Payload) ([]models.InferenceResponse, error) {
	responses := make([]models.InferenceResponse, 0, len(s.Models))
	current := payload
	for _, m := range s.Models {
		resp, err := e.backend.Predict(ctx, m.Name, m.Version, current)
		if err != nil {
			return nil, &models.InferenceError{Model: m.Name, Version: m.Version, Err: err}
		}
		responses = append(responses, resp)

		if s.Topology.OutputAsInput {
			prior := resp
			current = models.Payload{Image: payload.Image, Prior: &prior}
		}
	}
	return responses, nil
}

// runCascade executes each step, feeding named intermediate outputs into
// later steps that declare them as inputs. The step list is validated
// before any model call is made.
func (e *Executor) runCascade(ctx context.Context, s *skill.Skill, payload models.Payload) ([]models.InferenceResponse, error) {
	byName := make(map[string]models.ModelDescriptor, len(s.Models))
	for _, m := range s.Models {
		byName[m.Name] = m
	}

	// Validate every step before the first backend call: each declared
	// input must be produced by an earlier step, and each model must exist.
	produced := make(map[string]bool)
	for i, step := range s.Topology.Steps {
		if _, ok := byName[step.Model]; !ok {
			return nil, &models.ConfigError{
				Skill:  s.Name,
				Reason: fmt.Sprintf("cascade step %d references unknown model %q", i, step.Model),
			}
		}
		if step.Input != "" && !produced[step.Input] {
			return nil, &models.ConfigError{
				Skill:  s.Name,
				Reason: fmt.Sprintf("cascade step %d input %q is not produced by an earlier step", i, step.Input),
			}
		}
		if step.Output != "" {
			produced[step.Output] = true
		}
	}

	intermediate := make(map[string]models.InferenceResponse)
	responses := make([]models.InferenceResponse, 0, len(s.Topology.Steps))
	for _, step := range s.Topology.Steps {
		m := byName[step.Model]

		current := payload
		if step.Input != "" {
			prior := intermediate[step.Input]
			pre := m.Preprocess
			current = models.Payload{Image: payload.Image, Prior: &prior, Preprocess: &pre}
		}

		resp, err := e.backend.Predict(ctx, m.Name, m.Version, current)
		if err != nil {
			return nil, &models.InferenceError{Model: m.Name, Version: m.Version, Err: err}
		}
		responses = append(responses, resp)

		if step.Output != "" {
			intermediate[step.Output] = resp
		}
	}
	return responses, nil
}

// runParallel invokes every model concurrently against the identical
// payload and collects responses in the skill's declared model order.
func (e *Executor) runParallel(ctx context.Context, s *skill.Skill, payload models.Payload) ([]models.InferenceResponse, error) {
	responses := make([]models.InferenceResponse, len(s.Models))
	errs := make([]error, len(s.Models))

	var wg sync.WaitGroup
	for i, m := range s.Models {
		wg.Add(1)
		go func(i int, m models.ModelDescriptor) {
			defer wg.Done()
			resp, err := e.backend.Predict(ctx, m.Name, m.Version, payload)
			if err != nil {
				errs[i] = &models.InferenceError{Model: m.Name, Version: m.Version, Err: err}
				return
			}
			responses[i] = resp
		}(i, m)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return responses, nil
}
