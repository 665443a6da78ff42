package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/adapters/bedrock"
	"github.com/guardianmail/guardianmail/internal/adapters/gemini"
	"github.com/guardianmail/guardianmail/internal/adapters/llm"
	"github.com/guardianmail/guardianmail/internal/adapters/openai"
	"github.com/guardianmail/guardianmail/internal/config"
	"github.com/guardianmail/guardianmail/internal/core"
	"github.com/guardianmail/guardianmail/internal/utils"
)

// LLMFactory creates model clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateModelClient creates a model client for the configured provider
func (f *LLMFactory) CreateModelClient() (core.ModelClient, error) {
	provider := f.cfg.GetLLM().Provider
	providerCfg := f.cfg.GetProvider(provider)

	var completer llm.Completer
	switch provider {
	case "openai":
		completer = openai.NewCompleter(
			providerCfg.APIKey,
			providerCfg.ModelName,
			providerCfg.MaxTokens,
			providerCfg.Temperature,
			providerCfg.TopP,
			f.logger,
		)
	case "gemini":
		var err error
		completer, err = gemini.NewCompleter(
			providerCfg.APIKey,
			providerCfg.ModelName,
			providerCfg.MaxTokens,
			providerCfg.Temperature,
			providerCfg.TopP,
			f.logger,
		)
		if err != nil {
			return nil, err
		}
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(providerCfg.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		completer = bedrock.NewCompleter(
			bedrockruntime.NewFromConfig(awsCfg),
			providerCfg.ModelName,
			providerCfg.MaxTokens,
			providerCfg.Temperature,
			providerCfg.TopP,
			f.logger,
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return llm.NewClient(completer, f.logger, f.textProcessor, providerCfg.MaxBodySize), nil
}
