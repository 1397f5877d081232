package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Screener is an implementation of the ContentScreener interface using Google Gemini
type Screener struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewScreener creates a new Gemini screener. Extra client options are applied
// after the API key.
func NewScreener(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	opts ...option.ClientOption,
) (*Screener, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	return &Screener{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (s *Screener) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Screen asks the model whether a contact message is spam
func (s *Screener) Screen(ctx context.Context, record *core.SubmissionRecord) (*core.ScreeningVerdict, error) {
	body := s.textProcessor.ProcessText(record.Message, s.maxBodySize)
	prompt := fmt.Sprintf(utils.ScreeningPromptFormat, s.textProcessor.HeaderSafe(record.Name, 100), record.Email, body)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	parsed, err := utils.ParseVerdict(text.String())
	if err != nil {
		return nil, err
	}

	return &core.ScreeningVerdict{
		IsSpam:      parsed.IsSpam,
		Score:       parsed.Score,
		Confidence:  parsed.Confidence,
		Explanation: parsed.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   s.modelName,
	}, nil
}
