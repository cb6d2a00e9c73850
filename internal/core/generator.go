package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// FallbackCommand is returned when the backend cannot produce a command.
const FallbackCommand = "echo 'Command generation failed'"

const generatorPrompt = `You are a command generator agent. Your task is to generate a bash command based on the input string.
The input string is: %s

IMPORTANT: Respond ONLY with the raw bash command, without any explanations, markdown formatting, or backticks.
Do not include any other text in your response, just the executable command.`

// Generator turns a natural-language request into a candidate command.
type Generator struct {
	backend Backend
	model   string
	logger  *log.Logger
}

// NewGenerator creates a generator using the given backend model.
func NewGenerator(backend Backend, model string, opts ...EvaluatorOption) *Generator {
	o := applyOptions("generator", opts)
	return &Generator{backend: backend, model: model, logger: o.logger}
}

// Generate asks the backend for a command. On failure it returns
// FallbackCommand together with the error; the fallback must still be
// evaluated before it runs.
func (g *Generator) Generate(ctx context.Context, query string) (string, error) {
	if g.backend == nil {
		return FallbackCommand, fmt.Errorf("generating command: no backend configured")
	}

	g.logger.Debug("sending generation request", "model", g.model)
	raw, err := g.backend.Complete(ctx, JudgmentRequest{
		Model:  g.model,
		Prompt: fmt.Sprintf(generatorPrompt, query),
	})
	if err != nil {
		return FallbackCommand, fmt.Errorf("generating command: %w", err)
	}
	g.logger.Debug("generation response received", "response", raw)

	command := CleanCommand(raw)
	if strings.TrimSpace(command) == "" {
		return FallbackCommand, fmt.Errorf("generating command: %w", ErrEmptyResponse)
	}
	return command, nil
}
