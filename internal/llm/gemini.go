package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"

	"github.com/shai-cli/shai/internal/core"
)

// GeminiClient uses the Google Gemini API through google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	logger *log.Logger
}

// NewGemini creates a Gemini client. endpoint overrides the API base URL.
func NewGemini(ctx context.Context, apiKey, endpoint string, opts ...Option) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	o := applyOptions("gemini", opts)

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, logger: o.logger}, nil
}

// Complete implements core.Backend.
func (c *GeminiClient) Complete(ctx context.Context, req core.JudgmentRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.WantsJSON() {
		cfg.ResponseMIMEType = "application/json"
	}

	c.logger.Debug("sending generate content", "model", req.Model, "json", req.WantsJSON())
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("gemini request: %w", ctxErr)
		}
		return "", fmt.Errorf("%w: gemini generate failed: %v", ErrBackendUnavailable, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: %w", core.ErrEmptyResponse)
	}
	return text, nil
}
