package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/testutil"
)

func defaultEvalConfig() core.EvalConfig {
	return core.EvalConfig{
		Model:               "codellama:latest",
		ConfidenceThreshold: core.DefaultConfidenceThreshold,
	}
}

func newEvaluator(t *testing.T, backend core.Backend) *core.SafetyEvaluator {
	t.Helper()
	return core.NewSafetyEvaluator(nil, backend, core.WithLogger(testutil.TestLogger(t)))
}

func TestEvaluate_PatternDenyNeverCallsBackend(t *testing.T) {
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 1.0}`))
	eval := newEvaluator(t, backend)

	v := eval.Evaluate(context.Background(), "rm -rf /", defaultEvalConfig())

	if v.IsSafe {
		t.Fatal("rm -rf / was approved")
	}
	if v.Confidence != 1.0 || v.Source != core.SourcePattern {
		t.Errorf("verdict = %+v, want pattern verdict with confidence 1.0", v)
	}
	if !strings.HasPrefix(v.Rationale, "matched denial pattern") {
		t.Errorf("rationale = %q", v.Rationale)
	}
	if backend.Calls() != 0 {
		t.Errorf("backend called %d times for a pattern deny", backend.Calls())
	}
}

func TestEvaluate_WhitelistNeverCallsBackend(t *testing.T) {
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": false, "confidence": 1.0}`))
	eval := newEvaluator(t, backend)

	v := eval.Evaluate(context.Background(), "ls -la", defaultEvalConfig())

	if !v.IsSafe || v.Confidence != 1.0 || v.Source != core.SourcePattern {
		t.Fatalf("verdict = %+v, want safe pattern verdict", v)
	}
	if backend.Calls() != 0 {
		t.Errorf("backend called %d times for a whitelisted command", backend.Calls())
	}
}

func TestEvaluate_ThresholdForcesUnsafe(t *testing.T) {
	backend := testutil.NewStubBackend(testutil.Reply(
		`{"is_safe": true, "confidence": 0.6, "reasoning": "changes permissions on many files"}`))
	eval := newEvaluator(t, backend)

	v := eval.Evaluate(context.Background(), `find . -iname '*.py' -exec chmod 600 {} \;`, defaultEvalConfig())

	if v.IsSafe {
		t.Fatal("low-confidence approval was not gated")
	}
	if v.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6 preserved", v.Confidence)
	}
	if !v.Gated {
		t.Error("Gated = false, want true")
	}
	if v.Source != core.SourceModel {
		t.Errorf("Source = %q, want model", v.Source)
	}
	if v.Rationale != "" {
		t.Errorf("Rationale = %q, want empty without WantRationale", v.Rationale)
	}
	if backend.Calls() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.Calls())
	}
}

func TestEvaluate_ModelVerdicts(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		threshold float64
		wantSafe  bool
		wantGated bool
		wantSrc   core.Source
	}{
		{"confident approval", `{"is_safe": true, "confidence": 0.9}`, 0.75, true, false, core.SourceModel},
		{"at threshold", `{"is_safe": true, "confidence": 0.75}`, 0.75, true, false, core.SourceModel},
		{"confident denial", `{"is_safe": false, "confidence": 0.95}`, 0.75, false, false, core.SourceModel},
		{"low confidence denial not gated", `{"is_safe": false, "confidence": 0.1}`, 0.75, false, false, core.SourceModel},
		{"zero threshold disables gate", `{"is_safe": true, "confidence": 0.0}`, 0, true, false, core.SourceModel},
		{"full threshold", `{"is_safe": true, "confidence": 0.99}`, 1.0, false, true, core.SourceModel},
		{"fallback true is gated", `true`, 0.75, false, true, core.SourceFallback},
		{"fallback passes low threshold", `true`, 0.5, true, false, core.SourceFallback},
		{"missing is_safe", `{"confidence": 1.0}`, 0.75, false, false, core.SourceModel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eval := newEvaluator(t, testutil.NewStubBackend(testutil.Reply(tc.reply)))
			cfg := defaultEvalConfig()
			cfg.ConfidenceThreshold = tc.threshold

			v := eval.Evaluate(context.Background(), "touch notes.txt", cfg)
			if v.IsSafe != tc.wantSafe {
				t.Errorf("IsSafe = %v, want %v", v.IsSafe, tc.wantSafe)
			}
			if v.Gated != tc.wantGated {
				t.Errorf("Gated = %v, want %v", v.Gated, tc.wantGated)
			}
			if v.Source != tc.wantSrc {
				t.Errorf("Source = %q, want %q", v.Source, tc.wantSrc)
			}
		})
	}
}

func TestEvaluate_WantRationale(t *testing.T) {
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 0.9, "reasoning": "creates an empty file"}`))
	eval := newEvaluator(t, backend)
	cfg := defaultEvalConfig()
	cfg.WantRationale = true

	v := eval.Evaluate(context.Background(), "touch notes.txt", cfg)
	if v.Rationale != "creates an empty file" {
		t.Errorf("Rationale = %q", v.Rationale)
	}
}

func TestEvaluate_BackendFailureFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		backend core.Backend
	}{
		{"transport error", testutil.NewStubBackend(testutil.Fail(errors.New("connection refused")))},
		{"nil backend", nil},
		{"panicking backend", core.BackendFunc(func(context.Context, core.JudgmentRequest) (string, error) {
			panic("boom")
		})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eval := newEvaluator(t, tc.backend)
			v := eval.Evaluate(context.Background(), "touch notes.txt", defaultEvalConfig())

			if v.IsSafe {
				t.Fatal("backend failure produced an approval")
			}
			if v.Source != core.SourceError || v.Confidence != 1.0 {
				t.Errorf("verdict = %+v, want error verdict with confidence 1.0", v)
			}
			if v.Rationale == "" {
				t.Error("error verdict carries no rationale")
			}
		})
	}
}

func TestEvaluate_CancellationFailsClosed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eval := newEvaluator(t, testutil.NewStubBackend(testutil.Hang()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v := eval.Evaluate(ctx, "touch notes.txt", defaultEvalConfig())
	if v.IsSafe || v.Source != core.SourceError {
		t.Fatalf("verdict = %+v, want unsafe error verdict", v)
	}
	if !strings.Contains(v.Rationale, context.DeadlineExceeded.Error()) {
		t.Errorf("Rationale = %q, want deadline error", v.Rationale)
	}
}

func TestEvaluate_EmptyCommand(t *testing.T) {
	backend := testutil.NewStubBackend()
	eval := newEvaluator(t, backend)

	v := eval.Evaluate(context.Background(), "   ", defaultEvalConfig())
	if v.IsSafe || v.Source != core.SourcePattern || v.Rationale != core.ErrEmptyCommand.Error() {
		t.Fatalf("verdict = %+v", v)
	}
	if backend.Calls() != 0 {
		t.Error("backend called for an empty command")
	}
}

func TestEvaluate_RequestShape(t *testing.T) {
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 0.9}`))
	eval := newEvaluator(t, backend)

	eval.Evaluate(context.Background(), "touch notes.txt", defaultEvalConfig())

	reqs := backend.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Model != "codellama:latest" {
		t.Errorf("Model = %q", req.Model)
	}
	if !req.WantsJSON() {
		t.Error("safety request does not ask for JSON")
	}
	if !strings.Contains(req.Prompt, "touch notes.txt") {
		t.Errorf("prompt does not carry the command: %q", req.Prompt)
	}
}

func TestEvaluate_CustomPatternSet(t *testing.T) {
	set, err := core.NewPatternSet([]string{`\bterraform\s+destroy\b`}, []string{"make test"})
	if err != nil {
		t.Fatal(err)
	}
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 1}`))
	eval := core.NewSafetyEvaluator(set, backend, core.WithLogger(testutil.TestLogger(t)))

	if v := eval.Evaluate(context.Background(), "terraform destroy -auto-approve", defaultEvalConfig()); v.IsSafe {
		t.Error("custom deny pattern ignored")
	}
	if v := eval.Evaluate(context.Background(), "make test", defaultEvalConfig()); !v.IsSafe || v.Source != core.SourcePattern {
		t.Errorf("custom whitelist ignored: %+v", v)
	}
	if backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0", backend.Calls())
	}
}

func TestEvaluate_LogsStages(t *testing.T) {
	logger, buf := testutil.CapturingLogger(t)
	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 0.9}`))
	eval := core.NewSafetyEvaluator(nil, backend, core.WithLogger(logger))

	eval.Evaluate(context.Background(), "touch notes.txt", defaultEvalConfig())

	out := buf.String()
	for _, stage := range []core.Stage{core.StagePatternCheck, core.StageModelQuery, core.StageNormalize, core.StageDecided} {
		if !strings.Contains(out, "stage="+string(stage)) {
			t.Errorf("log output missing stage %s:\n%s", stage, out)
		}
	}
}

func TestExplainRisk(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := testutil.NewStubBackend(testutil.Reply("  It deletes everything.  \n"))
		eval := newEvaluator(t, backend)

		got := eval.ExplainRisk(context.Background(), "rm -rf /", "codellama:latest")
		if got != "It deletes everything." {
			t.Errorf("ExplainRisk = %q", got)
		}
		if reqs := backend.Requests(); len(reqs) != 1 || reqs[0].WantsJSON() {
			t.Errorf("unexpected explain request: %+v", reqs)
		}
	})

	t.Run("failure", func(t *testing.T) {
		eval := newEvaluator(t, testutil.NewStubBackend(testutil.Fail(errors.New("model not found"))))

		got := eval.ExplainRisk(context.Background(), "rm -rf /", "codellama:latest")
		if !strings.HasPrefix(got, core.ExplainFailedPrefix+": ") || !strings.Contains(got, "model not found") {
			t.Errorf("ExplainRisk = %q", got)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		eval := newEvaluator(t, testutil.NewStubBackend(testutil.Reply("   ")))

		got := eval.ExplainRisk(context.Background(), "rm -rf /", "codellama:latest")
		if !strings.HasPrefix(got, core.ExplainFailedPrefix) {
			t.Errorf("ExplainRisk = %q", got)
		}
	})
}
