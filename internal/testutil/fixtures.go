package testutil

import (
	"testing"
	"time"

	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/db"
)

// EvaluationOption customizes a test evaluation.
type EvaluationOption func(*db.Evaluation)

// MakeEvaluation creates and inserts an evaluation into the DB.
// The default is a whitelisted, unexecuted "ls -la".
func MakeEvaluation(t *testing.T, database *db.DB, opts ...EvaluationOption) *db.Evaluation {
	t.Helper()

	e := &db.Evaluation{
		Query:      "list files",
		Command:    "ls -la",
		IsSafe:     true,
		Confidence: 1.0,
		Source:     string(core.SourcePattern),
	}
	for _, opt := range opts {
		opt(e)
	}
	RequireNoError(t, database.CreateEvaluation(e), "create evaluation")
	return e
}

// WithCommand sets the query and generated command.
func WithCommand(query, command string) EvaluationOption {
	return func(e *db.Evaluation) {
		e.Query = query
		e.Command = command
	}
}

// WithVerdict copies a verdict into the evaluation.
func WithVerdict(v core.Verdict) EvaluationOption {
	return func(e *db.Evaluation) {
		e.IsSafe = v.IsSafe
		e.Confidence = v.Confidence
		e.Source = string(v.Source)
		e.Rationale = v.Rationale
		e.MatchedPattern = v.MatchedPattern
		e.Gated = v.Gated
	}
}

// Unsafe marks the evaluation as a pattern denial.
func Unsafe() EvaluationOption {
	return WithVerdict(core.Verdict{
		IsSafe:     false,
		Confidence: 1.0,
		Source:     core.SourcePattern,
		Rationale:  "matched denial pattern: test",
	})
}

// CreatedAt sets the creation time.
func CreatedAt(ts time.Time) EvaluationOption {
	return func(e *db.Evaluation) {
		e.CreatedAt = ts
	}
}

// Executed marks the evaluation as run with the given exit code.
func Executed(exitCode int) EvaluationOption {
	return func(e *db.Evaluation) {
		e.Executed = true
		e.ExitCode = &exitCode
	}
}
