package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

type stubPipeline struct {
	result  *models.ValidationResult
	lastReq *models.ValidationRequest
}

func (s *stubPipeline) ValidateQuery(_ context.Context, req *models.ValidationRequest) (*models.ValidationResult, error) {
	s.lastReq = req
	scripted := *s.result
	scripted.RequestID = req.RequestID
	return &scripted, nil
}

func (s *stubPipeline) Metrics() models.ValidationMetrics {
	return models.ValidationMetrics{TotalValidations: 5}
}

func validRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestValidateSQLHandler(t *testing.T) {
	pipeline := &stubPipeline{result: &models.ValidationResult{
		IsValid:      true,
		OverallScore: 0.95,
	}}
	handler := validateSQLHandler(pipeline, zap.NewNop())

	result, err := handler(context.Background(), validRequest(map[string]any{
		"sql":                    "SELECT name FROM players WHERE brand_id = 1",
		"original_query":         "list player names",
		"validation_level":       "comprehensive",
		"enable_self_correction": true,
		"skip_validation_types":  "semantic, business_logic",
		"user_id":                "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp models.EnhancedValidationResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ValidationResult)
	assert.True(t, resp.ValidationResult.IsValid)

	require.NotNil(t, pipeline.lastReq)
	assert.Equal(t, models.LevelComprehensive, pipeline.lastReq.Level)
	assert.True(t, pipeline.lastReq.EnableSelfCorrection)
	assert.Equal(t, "alice", pipeline.lastReq.UserID)
	assert.Equal(t, []models.ValidationType{models.TypeSemantic, models.TypeBusinessLogic},
		pipeline.lastReq.SkipValidationTypes)
}

func TestValidateSQLHandler_MissingSQL(t *testing.T) {
	handler := validateSQLHandler(&stubPipeline{}, zap.NewNop())

	result, err := handler(context.Background(), validRequest(map[string]any{
		"original_query": "list player names",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	assert.Equal(t, "missing_parameter", errResp.Code)
}

func TestValidateSQLHandler_UnknownLevel(t *testing.T) {
	handler := validateSQLHandler(&stubPipeline{}, zap.NewNop())

	result, err := handler(context.Background(), validRequest(map[string]any{
		"sql":              "SELECT 1",
		"original_query":   "one",
		"validation_level": "paranoid",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	assert.Equal(t, "invalid_request", errResp.Code)
}

func TestDryRunSQLHandler(t *testing.T) {
	pipeline := &stubPipeline{result: &models.ValidationResult{
		IsValid: true,
		DryRun: &models.DryRunExecutionResult{
			CanExecute:           true,
			ExecutedSuccessfully: true,
			EstimatedRowCount:    123,
		},
	}}
	handler := dryRunSQLHandler(pipeline, zap.NewNop())

	result, err := handler(context.Background(), validRequest(map[string]any{
		"sql": "SELECT name FROM players WHERE brand_id = 1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var dryRun models.DryRunExecutionResult
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &dryRun))
	assert.True(t, dryRun.CanExecute)
	assert.Equal(t, int64(123), dryRun.EstimatedRowCount)

	require.NotNil(t, pipeline.lastReq)
	assert.True(t, pipeline.lastReq.EnableDryRun)
	assert.Equal(t, models.LevelBasic, pipeline.lastReq.Level)
}

func TestDryRunSQLHandler_Unavailable(t *testing.T) {
	pipeline := &stubPipeline{result: &models.ValidationResult{IsValid: false}}
	handler := dryRunSQLHandler(pipeline, zap.NewNop())

	result, err := handler(context.Background(), validRequest(map[string]any{
		"sql": "DELETE FROM players",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	assert.Equal(t, "dry_run_unavailable", errResp.Code)
}

func TestMetricsHandler(t *testing.T) {
	handler := metricsHandler(&stubPipeline{})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	var snapshot models.ValidationMetrics
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &snapshot))
	assert.Equal(t, int64(5), snapshot.TotalValidations)
}
