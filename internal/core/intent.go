package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// Intent filter reasons.
const (
	ReasonEmpty          = "empty"
	ReasonConversational = "conversational query"
	ReasonValid          = "query is valid for shell command generation"
	ReasonNotCommand     = "query does not appear to be asking for a shell command"
	ReasonInconclusive   = "inconclusive, proceeding with caution"
)

// conversationalPatterns are matched against the lowercased query, in order.
var conversationalPatterns = compileConversational([]string{
	`^(hi|hello|hey|greetings)\b`,
	`how are you`,
	`what'?s your name`,
	`who (are|created) you`,
	`tell me (about|a) joke`,
	`can you help me with (.+\?)`,
	`what do you think about`,
	`explain \w+ to me`,
})

func compileConversational(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

const intentPrompt = `Determine if the following query is asking for a bash command or shell operation.
ONLY respond with "YES" if the query is asking for a bash command or shell operation.
Respond with "NO" if the query is seeking general information, conversation, or anything not suitable for bash command generation.

Query: %s

Response (YES/NO):`

// IntentFilter decides whether a query is a command-generation request.
// Unlike SafetyEvaluator it fails open: a backend failure lets the query
// through to the (still safety-gated) pipeline.
type IntentFilter struct {
	backend Backend
	model   string
	logger  *log.Logger
}

// NewIntentFilter creates an intent filter using the given backend model.
func NewIntentFilter(backend Backend, model string, opts ...EvaluatorOption) *IntentFilter {
	o := applyOptions("intent", opts)
	return &IntentFilter{
		backend: backend,
		model:   model,
		logger:  o.logger,
	}
}

// CheckIntent reports whether query is a legitimate command request and why.
func (f *IntentFilter) CheckIntent(ctx context.Context, query string) (bool, string) {
	v := f.Classify(ctx, query)
	return v.IsValid, v.Reason
}

// Classify runs the conversational pre-filter and, if inconclusive, the
// backend YES/NO classification.
func (f *IntentFilter) Classify(ctx context.Context, query string) IntentVerdict {
	if strings.TrimSpace(query) == "" {
		return IntentVerdict{IsValid: false, Reason: ReasonEmpty, Source: SourcePattern}
	}

	lower := strings.ToLower(query)
	for _, re := range conversationalPatterns {
		if re.MatchString(lower) {
			f.logger.Debug("query detected as conversational", "pattern", re.String())
			return IntentVerdict{IsValid: false, Reason: ReasonConversational, Source: SourcePattern}
		}
	}

	f.logger.Debug("checking query intent with backend", "model", f.model)
	raw, err := f.query(ctx, JudgmentRequest{
		Model:  f.model,
		Prompt: fmt.Sprintf(intentPrompt, query),
	})
	if err != nil {
		f.logger.Warn("intent classification failed, proceeding", "err", err)
		return IntentVerdict{IsValid: true, Reason: ReasonInconclusive, Source: SourceError}
	}

	f.logger.Debug("intent classification result", "response", raw)
	if ParseBinary(raw) {
		return IntentVerdict{IsValid: true, Reason: ReasonValid, Source: SourceModel}
	}
	return IntentVerdict{IsValid: false, Reason: ReasonNotCommand, Source: SourceModel}
}

func (f *IntentFilter) query(ctx context.Context, req JudgmentRequest) (raw string, err error) {
	if f.backend == nil {
		return "", fmt.Errorf("no judgment backend configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("judgment backend panicked: %v", r)
		}
	}()
	return f.backend.Complete(ctx, req)
}
