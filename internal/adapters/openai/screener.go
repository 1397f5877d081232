package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Screener is an implementation of the ContentScreener interface using OpenAI
type Screener struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScreener creates a new OpenAI screener
func NewScreener(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Screener {
	return &Screener{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Screen asks the model whether a contact message is spam
func (s *Screener) Screen(ctx context.Context, record *core.SubmissionRecord) (*core.ScreeningVerdict, error) {
	body := s.textProcessor.ProcessText(record.Message, s.maxBodySize)
	prompt := fmt.Sprintf(utils.ScreeningPromptFormat, s.textProcessor.HeaderSafe(record.Name, 100), record.Email, body)

	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a spam detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := utils.ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("OpenAI screening complete",
		zap.String("id", record.ID),
		zap.String("completion_id", resp.ID))

	return &core.ScreeningVerdict{
		IsSpam:      parsed.IsSpam,
		Score:       parsed.Score,
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   s.modelName,
	}, nil
}
