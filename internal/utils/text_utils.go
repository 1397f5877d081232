package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const truncationMarker = "\n[... Content truncated due to size limits ...]"

// TextProcessor prepares submitter text for prompts and notifications
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText cuts text to at most maxSize bytes without splitting a rune.
// maxSize <= 0 disables the limit.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + truncationMarker
}

// SanitizeUTF8 drops invalid UTF-8 bytes and control characters other than
// newlines and tabs
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	clean := strings.Map(func(r rune) rune {
		if r == utf8.RuneError {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, strings.ToValidUTF8(text, ""))

	if len(clean) != len(text) {
		tp.logger.Debug("Text sanitized",
			zap.Int("original_size", len(text)),
			zap.Int("sanitized_size", len(clean)))
	}
	return clean
}

// ProcessText sanitizes and then truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.TruncateText(tp.SanitizeUTF8(text), maxSize)
}

// HeaderSafe flattens text for use in a mail header
func (tp *TextProcessor) HeaderSafe(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(tp.SanitizeUTF8(text)), " ")
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		runes := []rune(text)
		text = string(runes[:maxRunes]) + "…"
	}
	return text
}
