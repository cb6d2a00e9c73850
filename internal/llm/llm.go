// Package llm provides judgment backends for the safety pipeline.
//
// Every client implements core.Backend and returns the provider's raw reply
// text. Parsing and fail-closed handling stay in internal/core.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shai-cli/shai/internal/core"
)

// Providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Errors returned by backends.
var (
	// ErrBackendUnavailable wraps transport failures and non-200 replies.
	ErrBackendUnavailable = errors.New("judgment backend unavailable")
	// ErrUnknownProvider is returned by New for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown judgment provider")
)

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 4 << 10

// Option configures a backend client.
type Option func(*options)

type options struct {
	logger     *log.Logger
	httpClient *http.Client
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

func applyOptions(prefix string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default().WithPrefix(prefix)
	}
	if o.httpClient == nil {
		// Deadlines come from the request context (see WithTimeout).
		o.httpClient = &http.Client{}
	}
	return o
}

// postJSON sends body as JSON and decodes a 200 reply into out.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s request: %w", provider, ctxErr)
		}
		return fmt.Errorf("%w: %s request failed: %v", ErrBackendUnavailable, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned status %d: %s", ErrBackendUnavailable, provider, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", provider, err)
	}
	return nil
}

type timeoutBackend struct {
	next    core.Backend
	timeout time.Duration
}

// WithTimeout bounds every call to b by d. A non-positive d returns b unchanged.
func WithTimeout(b core.Backend, d time.Duration) core.Backend {
	if d <= 0 || b == nil {
		return b
	}
	return &timeoutBackend{next: b, timeout: d}
}

func (t *timeoutBackend) Complete(ctx context.Context, req core.JudgmentRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}
