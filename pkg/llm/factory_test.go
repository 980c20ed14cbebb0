package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

func TestNewCorrector_Providers(t *testing.T) {
	cfg := &Config{Model: "test-model", APIKey: "key"}

	openaiC, err := NewCorrector("openai", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Client{}, openaiC)

	defaultC, err := NewCorrector("", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Client{}, defaultC)

	anthropicC, err := NewCorrector("anthropic", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, anthropicC)

	mockC, err := NewCorrector("mock", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MockCorrector{}, mockC)

	_, err = NewCorrector("bard", cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewCorrector_RequiresModel(t *testing.T) {
	_, err := NewCorrector("openai", &Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestMockCorrector_RecordsCalls(t *testing.T) {
	mock := NewMockCorrector()

	req := &CorrectionRequest{
		SQL:      "SELECT * FROM t",
		Question: "everything",
		Strategy: models.StrategySchema,
	}
	result, err := mock.Correct(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.SQL, result.CorrectedSQL)
	assert.Equal(t, 1, mock.CorrectCalls())
	assert.Equal(t, req, mock.LastRequest())
}
