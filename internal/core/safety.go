package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultConfidenceThreshold is the minimum model confidence for approval.
const DefaultConfidenceThreshold = 0.75

// safetyFields is the response schema requested from the judgment backend.
var safetyFields = []string{"is_safe", "confidence", "reasoning"}

const safetySystemPrompt = `You are a command safety agent. You judge whether a bash command is safe to execute on the user's machine.
Respond ONLY with a JSON object of the form {"is_safe": true|false, "confidence": <number between 0 and 1>, "reasoning": "<one short sentence>"}.
Do not use markdown formatting or backticks.`

const explainSystemPrompt = `You are a shell security expert. Explain briefly and plainly.`

// ExplainFailedPrefix starts the message returned when a risk explanation cannot be produced.
const ExplainFailedPrefix = "Failed to explain command risk"

// Stage names the states of an evaluation, used in debug logs.
type Stage string

const (
	StagePatternCheck  Stage = "pattern_check"
	StageModelQuery    Stage = "model_query"
	StageNormalize     Stage = "normalize"
	StageThresholdGate Stage = "threshold_gate"
	StageDecided       Stage = "decided"
)

// EvalConfig controls a single evaluation.
type EvalConfig struct {
	// Model is the judgment backend model identifier.
	Model string
	// ConfidenceThreshold is the minimum confidence for a model approval, in [0,1].
	ConfidenceThreshold float64
	// WantRationale attaches the model's reasoning to the verdict.
	WantRationale bool
}

// SafetyEvaluator decides whether a command may run: patterns first, then
// the judgment backend, then the confidence gate. It fails closed.
type SafetyEvaluator struct {
	patterns *PatternSet
	backend  Backend
	logger   *log.Logger
}

// EvaluatorOption configures a SafetyEvaluator or IntentFilter.
type EvaluatorOption func(*evaluatorOptions)

type evaluatorOptions struct {
	logger *log.Logger
}

// WithLogger sets the logger used for stage and backend events.
func WithLogger(l *log.Logger) EvaluatorOption {
	return func(o *evaluatorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(prefix string, opts []EvaluatorOption) evaluatorOptions {
	o := evaluatorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default().WithPrefix(prefix)
	}
	return o
}

// NewSafetyEvaluator creates an evaluator. A nil pattern set uses the builtin set.
func NewSafetyEvaluator(patterns *PatternSet, backend Backend, opts ...EvaluatorOption) *SafetyEvaluator {
	if patterns == nil {
		patterns = DefaultPatternSet()
	}
	o := applyOptions("safety", opts)
	return &SafetyEvaluator{
		patterns: patterns,
		backend:  backend,
		logger:   o.logger,
	}
}

// Evaluate judges a command. It never returns an error: backend failures
// become a deny verdict with SourceError.
func (e *SafetyEvaluator) Evaluate(ctx context.Context, command string, cfg EvalConfig) Verdict {
	command = strings.TrimSpace(command)
	if command == "" {
		return Verdict{IsSafe: false, Confidence: 1.0, Source: SourcePattern, Rationale: ErrEmptyCommand.Error()}
	}

	e.logger.Debug("evaluating command", "stage", StagePatternCheck, "command", command)
	if v, ok := e.patterns.Classify(command).Verdict(); ok {
		e.logger.Debug("pattern decided", "stage", StageDecided, "is_safe", v.IsSafe, "pattern", v.MatchedPattern)
		return v
	}

	e.logger.Debug("no pattern matched, escalating", "stage", StageModelQuery, "model", cfg.Model)
	raw, err := e.query(ctx, JudgmentRequest{
		Model:  cfg.Model,
		System: safetySystemPrompt,
		Prompt: safetyPrompt(command),
		Schema: safetyFields,
	})
	if err != nil {
		e.logger.Warn("safety judgment failed", "err", err)
		return Verdict{
			IsSafe:     false,
			Confidence: 1.0,
			Source:     SourceError,
			Rationale:  err.Error(),
		}
	}

	e.logger.Debug("judgment received", "stage", StageNormalize, "response", raw)
	v := Normalize(raw)

	v = gate(v, cfg)
	e.logger.Debug("judgment decided", "stage", StageDecided,
		"is_safe", v.IsSafe, "confidence", v.Confidence, "source", v.Source, "gated", v.Gated)
	return v
}

// gate forces low-confidence model verdicts to unsafe. It only ever lowers
// trust; the reported confidence is preserved.
func gate(v Verdict, cfg EvalConfig) Verdict {
	if v.Confidence < cfg.ConfidenceThreshold {
		if v.IsSafe {
			v.Gated = true
		}
		v.IsSafe = false
	}
	if !cfg.WantRationale {
		v.Rationale = ""
	}
	return v
}

func (e *SafetyEvaluator) query(ctx context.Context, req JudgmentRequest) (raw string, err error) {
	if e.backend == nil {
		return "", fmt.Errorf("no judgment backend configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("judgment backend panicked: %v", r)
		}
	}()
	return e.backend.Complete(ctx, req)
}

// ExplainRisk asks the backend what a rejected command does, why it is
// risky and what a safer alternative would be. Failures are reported in the
// returned text, never as an error.
func (e *SafetyEvaluator) ExplainRisk(ctx context.Context, command, model string) string {
	raw, err := e.query(ctx, JudgmentRequest{
		Model:  model,
		System: explainSystemPrompt,
		Prompt: explainPrompt(command),
	})
	if err != nil {
		e.logger.Warn("risk explanation failed", "err", err)
		return fmt.Sprintf("%s: %v", ExplainFailedPrefix, err)
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return fmt.Sprintf("%s: %v", ExplainFailedPrefix, ErrEmptyResponse)
	}
	return text
}

func safetyPrompt(command string) string {
	return fmt.Sprintf(`Validate the following bash command for safety.
The command is: %s

Return JSON with the fields %s.`, command, strings.Join(safetyFields, ", "))
}

func explainPrompt(command string) string {
	return fmt.Sprintf(`The following bash command was judged unsafe to run:

%s

Explain in a few sentences:
1. What the command does
2. Why it is risky
3. A safer alternative that achieves the same goal`, command)
}
