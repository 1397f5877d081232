package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScreeningPromptFormat is shared by every LLM screener. Arguments are the
// sender name, sender email and message body.
const ScreeningPromptFormat = `You are a spam detection system for a personal portfolio contact form. Analyze the following message and determine if it's spam.
Respond with a JSON object containing:
- is_spam: boolean (true if spam, false if not)
- score: number between 0 and 1 (higher means more likely to be spam)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of why you think it's spam or not)

Message:
Name: %s
Email: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// VerdictResponse is the structured response expected from the LLM
type VerdictResponse struct {
	IsSpam      bool    `json:"is_spam"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// ParseVerdict decodes the model output, falling back to the outermost JSON
// object when the model wrapped it in prose or code fences.
func ParseVerdict(responseText string) (*VerdictResponse, error) {
	var resp VerdictResponse
	if err := json.Unmarshal([]byte(responseText), &resp); err == nil {
		return &resp, nil
	}

	start := strings.IndexByte(responseText, '{')
	end := strings.LastIndexByte(responseText, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("failed to extract JSON from LLM response")
	}

	if err := json.Unmarshal([]byte(responseText[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return &resp, nil
}
