package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client completes a single prompt into plain text.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// ClientConfig is passed in by the caller at construction time; nothing is read from the environment here.
type ClientConfig struct {
	Provider    string
	Endpoint    string
	ModelName   string
	APIKey      string
	Temperature float64
	TimeoutMs   int
	MaxRetries  int
}

func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// NewClient builds the provider client and wraps it with logging, retry and per-call timeout.
func NewClient(cfg ClientConfig) (Client, error) {
	base, err := newProviderClient(cfg)
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] Model client ready: provider=%s model=%s timeout=%s retries=%d",
		cfg.Provider, cfg.ModelName, cfg.Timeout(), cfg.MaxRetries)

	return Chain(base,
		WithLogging(cfg.Provider+"/"+cfg.ModelName),
		WithRetry(cfg.MaxRetries+1, 300*time.Millisecond),
		WithTimeout(cfg.Timeout()),
	), nil
}

func newProviderClient(cfg ClientConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.ModelName)}
		if cfg.Endpoint != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Endpoint))
		}
		model, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return NewLangchainClient(model, cfg.Temperature), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		opts := []openai.Option{
			openai.WithModel(cfg.ModelName),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return NewLangchainClient(model, cfg.Temperature), nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.ModelName, cfg.Temperature), nil

	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
}

// LangchainClient runs completions through any langchaingo model.
type LangchainClient struct {
	llm         llms.Model
	temperature float64
}

func NewLangchainClient(model llms.Model, temperature float64) *LangchainClient {
	return &LangchainClient{llm: model, temperature: temperature}
}

func (c *LangchainClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	return completion, nil
}
