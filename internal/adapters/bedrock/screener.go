package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"go.uber.org/zap"
)

// InvokeModelAPI is the part of the Bedrock runtime client the screener uses
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Screener is an implementation of the ContentScreener interface using Amazon Bedrock
type Screener struct {
	client        InvokeModelAPI
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScreener creates a new Bedrock screener
func NewScreener(
	client InvokeModelAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Screener {
	return &Screener{
		client:        client,
		modelID:       modelID,
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

	payload, err := s.requestBody(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := s.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := utils.ParseVerdict(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ScreeningVerdict{
		IsSpam:      parsed.IsSpam,
		Score:       parsed.Score,
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   s.modelID,
	}, nil
}

// requestBody builds the model-family specific payload
func (s *Screener) requestBody(prompt string) ([]byte, error) {
	switch {
	case s.isAnthropicModel():
		return json.Marshal(map[string]any{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": s.maxTokens,
			"temperature":          s.temperature,
			"top_p":                s.topP,
		})
	case s.isAmazonTitanModel():
		return json.Marshal(map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": s.maxTokens,
				"temperature":   s.temperature,
				"topP":          s.topP,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_tokens":  s.maxTokens,
			"temperature": s.temperature,
			"top_p":       s.topP,
		})
	}
}

// responseText pulls the generated text out of the model-family specific body
func (s *Screener) responseText(body []byte) (string, error) {
	switch {
	case s.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case s.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, candidate := range []string{genericResp.Output, genericResp.Text, genericResp.Response} {
			if candidate != "" {
				return candidate, nil
			}
		}
		return string(body), nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (s *Screener) isAnthropicModel() bool {
	return strings.HasPrefix(s.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (s *Screener) isAmazonTitanModel() bool {
	return strings.HasPrefix(s.modelID, "amazon.titan")
}
