package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/contact-guard/internal/adapters/bedrock"
	"github.com/mikey/contact-guard/internal/adapters/gemini"
	openaiadapter "github.com/mikey/contact-guard/internal/adapters/openai"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ScreenerFactory creates content screeners for the configured LLM provider
type ScreenerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScreenerFactory creates a new screener factory
func NewScreenerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ScreenerFactory {
	return &ScreenerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateScreener creates a screener based on the configuration
func (f *ScreenerFactory) CreateScreener(ctx context.Context) (core.ContentScreener, error) {
	provider := f.cfg.GetLLM().Provider

	switch provider {
	case "bedrock":
		return f.createBedrock(ctx)
	case "gemini":
		return f.createGemini(ctx)
	case "openai":
		return f.createOpenAI()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func (f *ScreenerFactory) createBedrock(ctx context.Context) (core.ContentScreener, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bedrockCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewScreener(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		bedrockCfg.Temperature,
		bedrockCfg.TopP,
		bedrockCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}

func (f *ScreenerFactory) createGemini(ctx context.Context) (core.ContentScreener, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return gemini.NewScreener(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	)
}

func (f *ScreenerFactory) createOpenAI() (core.ContentScreener, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(openaiCfg.APIKey)
	if openaiCfg.BaseURL != "" {
		clientCfg.BaseURL = openaiCfg.BaseURL
	}

	return openaiadapter.NewScreener(
		openai.NewClientWithConfig(clientCfg),
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}
