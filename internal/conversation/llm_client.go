package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/baymax-health/internal/observability/metrics"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is a single provider completion call.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// Generator turns a finished prompt into response text.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

var errEmptyCompletion = errors.New("conversation: model returned empty text")

// GeneratorConfig controls how LLMGenerator calls its client.
type GeneratorConfig struct {
	Provider    string
	Model       string
	MaxTokens   int32
	Temperature float32
	TopP        float32 // zero leaves the provider default
	Timeout     time.Duration
}

// LLMGenerator adapts an LLMClient to Generator. Each call gets its own
// deadline and is issued exactly once.
type LLMGenerator struct {
	client  LLMClient
	cfg     GeneratorConfig
	metrics *metrics.ChatMetrics
}

func NewLLMGenerator(client LLMClient, cfg GeneratorConfig, m *metrics.ChatMetrics) *LLMGenerator {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LLMGenerator{client: client, cfg: cfg, metrics: m}
}

// Generate sends the safety rules as the system prompt and the windowed
// history as prior messages.
func (g *LLMGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.cfg.Model,
		System:      systemBlocks(prompt.System),
		Messages:    prompt.Messages(),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errEmptyCompletion
	}
	g.metrics.ObserveGeneration(g.cfg.Provider, err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func systemBlocks(system string) []string {
	if strings.TrimSpace(system) == "" {
		return nil
	}
	return []string{system}
}
