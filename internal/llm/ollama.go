package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/shai-cli/shai/internal/core"
)

// DefaultOllamaEndpoint is the local Ollama server address.
const DefaultOllamaEndpoint = "http://localhost:11434"

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// NewOllama creates an Ollama client. An empty endpoint uses DefaultOllamaEndpoint.
func NewOllama(endpoint string, opts ...Option) *OllamaClient {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	o := applyOptions("ollama", opts)
	return &OllamaClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   o.httpClient,
		logger:   o.logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete implements core.Backend.
func (c *OllamaClient) Complete(ctx context.Context, req core.JudgmentRequest) (string, error) {
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: messagesFor(req),
	}
	if req.WantsJSON() {
		body.Format = "json"
	}

	c.logger.Debug("sending chat request", "model", req.Model, "json", req.WantsJSON())
	var resp ollamaChatResponse
	if err := postJSON(ctx, c.client, "ollama", c.endpoint+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("ollama: %w", core.ErrEmptyResponse)
	}
	return resp.Message.Content, nil
}

func messagesFor(req core.JudgmentRequest) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}
