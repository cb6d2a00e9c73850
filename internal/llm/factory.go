package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shai-cli/shai/internal/core"
)

// Default API key environment variables per provider.
const (
	DefaultOpenAIKeyEnv = "OPENAI_API_KEY"
	DefaultGeminiKeyEnv = "GEMINI_API_KEY"
)

// Config selects and configures a judgment backend.
type Config struct {
	// Provider is one of ollama, openai, gemini. Empty means ollama.
	Provider string
	// Endpoint overrides the provider base URL.
	Endpoint string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// Timeout bounds every backend call. Zero means no extra bound.
	Timeout time.Duration
}

// New builds the configured backend wrapped with its timeout.
func New(ctx context.Context, cfg Config, opts ...Option) (core.Backend, error) {
	var (
		backend core.Backend
		err     error
	)

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", ProviderOllama:
		backend = NewOllama(cfg.Endpoint, opts...)
	case ProviderOpenAI:
		backend = NewOpenAI(apiKey(cfg.APIKeyEnv, DefaultOpenAIKeyEnv), cfg.Endpoint, opts...)
	case ProviderGemini:
		envName := keyEnv(cfg.APIKeyEnv, DefaultGeminiKeyEnv)
		key := os.Getenv(envName)
		if key == "" {
			return nil, fmt.Errorf("gemini provider requires %s to be set", envName)
		}
		backend, err = NewGemini(ctx, key, cfg.Endpoint, opts...)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q (valid: ollama, openai, gemini)", ErrUnknownProvider, provider)
	}

	return WithTimeout(backend, cfg.Timeout), nil
}

// Providers lists the supported provider names.
func Providers() []string {
	return []string{ProviderOllama, ProviderOpenAI, ProviderGemini}
}

func keyEnv(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func apiKey(configured, fallback string) string {
	return os.Getenv(keyEnv(configured, fallback))
}
