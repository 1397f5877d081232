package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mikey/contact-guard/internal/adapters/submissionlog"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateSubmissionLog(t *testing.T) {
	v := config.NewEmptyViper()
	f := NewStoreFactory(config.NewFromViper(v), zap.NewNop())

	log, err := f.CreateSubmissionLog(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &submissionlog.MemoryLog{}, log)

	v.Set("store.type", "sqlite")
	v.Set("store.sqlite_path", filepath.Join(t.TempDir(), "nested", "guard.db"))
	log, err = f.CreateSubmissionLog(context.Background())
	require.NoError(t, err)
	sqlite, ok := log.(*submissionlog.SQLiteLog)
	require.True(t, ok)
	assert.NoError(t, sqlite.Close())

	v.Set("store.type", "redis")
	_, err = f.CreateSubmissionLog(context.Background())
	assert.ErrorContains(t, err, "unsupported store type")
}

func TestCreateScreener_Validation(t *testing.T) {
	v := config.NewEmptyViper()
	logger := zap.NewNop()
	f := NewScreenerFactory(config.NewFromViper(v), logger, NewTextProcessorFactory(logger).CreateTextProcessor())

	_, err := f.CreateScreener(context.Background())
	assert.ErrorContains(t, err, "openai API key is required")

	v.Set("llm.provider", "gemini")
	_, err = f.CreateScreener(context.Background())
	assert.ErrorContains(t, err, "gemini API key is required")

	v.Set("llm.provider", "clippy")
	_, err = f.CreateScreener(context.Background())
	assert.ErrorContains(t, err, "unsupported LLM provider")

	v.Set("llm.provider", "openai")
	v.Set("openai.api_key", "sk-test")
	s, err := f.CreateScreener(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCreateNotifier(t *testing.T) {
	v := config.NewEmptyViper()
	logger := zap.NewNop()
	f := NewNotifierFactory(config.NewFromViper(v), logger, NewTextProcessorFactory(logger).CreateTextProcessor())

	n, err := f.CreateNotifier()
	require.NoError(t, err)
	assert.NotNil(t, n)

	v.Set("notify.enabled", true)
	_, err = f.CreateNotifier()
	assert.Error(t, err, "enabled notifications need a recipient")

	v.Set("notify.to", "owner@example.com")
	n, err = f.CreateNotifier()
	require.NoError(t, err)
	assert.NotNil(t, n)
}
