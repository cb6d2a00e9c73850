// Package core implements the command-safety pipeline: pattern matching,
// judgment normalization, safety evaluation and query intent filtering.
package core

import (
	"context"
	"errors"
)

// Source records which stage of the pipeline produced a verdict.
type Source string

const (
	// SourcePattern is a deterministic pattern match (confidence 1.0).
	SourcePattern Source = "pattern"
	// SourceModel is a structured judgment parsed from the backend reply.
	SourceModel Source = "model"
	// SourceFallback is a heuristic reading of an unstructured reply.
	SourceFallback Source = "fallback"
	// SourceError means the judgment itself failed; the decision is a default.
	SourceError Source = "error"
)

// Verdict is the outcome of a safety evaluation.
type Verdict struct {
	// IsSafe reports whether the command may be executed.
	IsSafe bool `json:"is_safe"`
	// Confidence is always in [0,1]. Pattern and error verdicts carry 1.0.
	Confidence float64 `json:"confidence"`
	// Rationale explains the decision. Model reasoning is only attached when requested.
	Rationale string `json:"rationale,omitempty"`
	// Source is the stage that decided.
	Source Source `json:"source"`
	// MatchedPattern names the pattern rule for pattern verdicts.
	MatchedPattern string `json:"matched_pattern,omitempty"`
	// Gated is set when a model verdict was forced unsafe by the confidence threshold.
	Gated bool `json:"gated,omitempty"`
}

// IntentVerdict is the outcome of the query intent filter.
type IntentVerdict struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
	Source  Source `json:"source"`
}

// Errors surfaced by backends and collaborators.
var (
	ErrEmptyCommand  = errors.New("empty command")
	ErrEmptyResponse = errors.New("empty response from judgment backend")
)

// JudgmentRequest is the outbound prompt context sent to a judgment backend.
type JudgmentRequest struct {
	// Model is the backend model identifier.
	Model string
	// System is an optional system instruction.
	System string
	// Prompt is the user prompt text.
	Prompt string
	// Schema lists the structured fields the normalizer expects. A non-empty
	// schema asks the backend for a JSON object reply.
	Schema []string
}

// WantsJSON reports whether the request expects a JSON object reply.
func (r JudgmentRequest) WantsJSON() bool {
	return len(r.Schema) > 0
}

// Backend is an external judgment service returning raw free-form text.
// Implementations must honor ctx cancellation.
type Backend interface {
	Complete(ctx context.Context, req JudgmentRequest) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req JudgmentRequest) (string, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req JudgmentRequest) (string, error) {
	return f(ctx, req)
}
