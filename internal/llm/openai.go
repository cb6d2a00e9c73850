package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/shai-cli/shai/internal/core"
)

// DefaultOpenAIEndpoint is the OpenAI API base URL.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewOpenAI creates an OpenAI-compatible client. An empty baseURL uses
// DefaultOpenAIEndpoint. The key may be empty for local gateways.
func NewOpenAI(apiKey, baseURL string, opts ...Option) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIEndpoint
	}
	o := applyOptions("openai", opts)
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  o.httpClient,
		logger:  o.logger,
	}
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements core.Backend.
func (c *OpenAIClient) Complete(ctx context.Context, req core.JudgmentRequest) (string, error) {
	body := openAIChatRequest{
		Model:    req.Model,
		Messages: messagesFor(req),
	}
	if req.WantsJSON() {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	c.logger.Debug("sending chat completion", "model", req.Model, "json", req.WantsJSON())
	var resp openAIChatResponse
	if err := postJSON(ctx, c.client, "openai", c.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai: %w", core.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
