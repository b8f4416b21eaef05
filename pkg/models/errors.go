package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on with errors.Is.
var (
	// ErrSkillNotFound is returned when a skill name has no catalog entry.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrAlreadyRunning is returned when a stream session for the same
	// (source, skill) pair is already active.
	ErrAlreadyRunning = errors.New("stream already running")

	// ErrSourceUnavailable is returned when a video source cannot be opened.
	ErrSourceUnavailable = errors.New("video source unavailable")
)

// ConfigError indicates a malformed skill or topology definition. It is a
// programming/definition defect, never retried.
type ConfigError struct {
	Skill  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("skill %s: config error: %s", e.Skill, e.Reason)
}

// InferenceError wraps a backend call failure and identifies the failing model.
type InferenceError struct {
	Model   string
	Version string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for model %s/%s: %v", e.Model, e.Version, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// AssemblyError indicates the assembly function received an unexpected
// response count or shape.
type AssemblyError struct {
	Skill  string
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("skill %s: assembly error: %s", e.Skill, e.Reason)
}
