package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/baymax-health/internal/config"
	"github.com/wolfman30/baymax-health/internal/conversation"
	"github.com/wolfman30/baymax-health/internal/observability/metrics"
	"github.com/wolfman30/baymax-health/pkg/logging"
)

// AWSConfigLoader lazily produces the shared AWS config. It is only called
// when a component that needs AWS is enabled.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildLLMClient returns the client for LLM_PROVIDER and the model it uses.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader) (conversation.LLMClient, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.LLMProvider {
	case appconfig.ProviderGemini, "":
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		return client, cfg.GeminiModel, nil

	case appconfig.ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, "", fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		if loadAWS == nil {
			return nil, "", fmt.Errorf("bootstrap: aws config loader is required for the bedrock provider")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), cfg.BedrockModelID, nil

	case appconfig.ProviderOpenAI:
		client, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: openai client: %w", err)
		}
		return client, cfg.OpenAIModel, nil

	default:
		return nil, "", fmt.Errorf("bootstrap: unknown llm provider %q", cfg.LLMProvider)
	}
}

// BuildGenerator wraps client with the configured budget and timeout.
func BuildGenerator(cfg *appconfig.Config, client conversation.LLMClient, model string, m *metrics.ChatMetrics) *conversation.LLMGenerator {
	provider := cfg.LLMProvider
	if provider == "" {
		provider = appconfig.ProviderGemini
	}
	return conversation.NewLLMGenerator(client, conversation.GeneratorConfig{
		Provider:    provider,
		Model:       model,
		MaxTokens:   int32(cfg.LLMMaxTokens),
		Temperature: float32(cfg.LLMTemperature),
		TopP:        float32(cfg.LLMTopP),
		Timeout:     cfg.GenerationTimeout,
	}, m)
}

// BuildChatService assembles the chat pipeline over the given stores.
func BuildChatService(cfg *appconfig.Config, stores *Stores, generator conversation.Generator, logger *logging.Logger, m *metrics.ChatMetrics, opts ...conversation.ServiceOption) (*conversation.Service, error) {
	if cfg == nil || stores == nil {
		return nil, fmt.Errorf("bootstrap: config and stores are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	window := conversation.WindowConfig{
		TurnLimit:    cfg.HistoryTurnLimit,
		LineLimit:    cfg.HistoryLineLimit,
		ExcerptChars: cfg.PrescriptionExcerptChars,
	}
	assembler := conversation.NewAssembler(stores.Turns, stores.Prescriptions, window, logger, m)
	base := []conversation.ServiceOption{
		conversation.WithLogger(logger),
		conversation.WithMetrics(m),
	}
	return conversation.NewService(stores.Turns, assembler, generator, append(base, opts...)...), nil
}
