// Package tools registers the MCP tool surface of the validation pipeline.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/services"
)

const (
	descValidateSQL = "Validate a generated SQL statement against the security, semantic, schema, and " +
		"business-logic stages before it reaches the database. Returns a scored, per-stage report. " +
		"When enable_self_correction is set and the statement fails, the engine attempts a bounded " +
		"number of model-generated repairs and returns the best candidate with the full attempt history."

	descDryRunSQL = "Preview a SQL statement against the live execution engine without running it. " +
		"Returns the optimizer's execution plan with row and cost estimates. " +
		"Use this to judge query cost before execution; the preview never touches table data."

	descValidationMetrics = "Return aggregate validation pipeline telemetry: run counts, pass rates, " +
		"per-stage score averages, and self-correction statistics."

	descSQLParam           = "SQL statement to validate (single statement)"
	descOriginalQueryParam = "The natural-language question the SQL was generated from"
	descLevelParam         = "Validation level: basic, standard, comprehensive, or strict. Defaults to standard."
	descSkipParam          = "Comma-separated stage names to skip (security, semantic, schema, business_logic)"
)

// RegisterValidationTools adds the validation pipeline tools to the server.
func RegisterValidationTools(s *server.MCPServer, pipeline services.QueryValidationService, logger *zap.Logger) {
	s.AddTool(
		mcp.NewTool("validate_sql",
			mcp.WithDescription(descValidateSQL),
			mcp.WithString("sql", mcp.Required(), mcp.Description(descSQLParam)),
			mcp.WithString("original_query", mcp.Required(), mcp.Description(descOriginalQueryParam)),
			mcp.WithString("validation_level", mcp.Description(descLevelParam)),
			mcp.WithString("skip_validation_types", mcp.Description(descSkipParam)),
			mcp.WithString("user_id", mcp.Description("Caller identity used for access policy checks")),
			mcp.WithBoolean("enable_self_correction", mcp.Description("Attempt to repair a failing statement. Defaults to false.")),
			mcp.WithBoolean("enable_dry_run", mcp.Description("Preview the surviving statement against the execution engine. Defaults to false.")),
		),
		validateSQLHandler(pipeline, logger),
	)

	s.AddTool(
		mcp.NewTool("dry_run_sql",
			mcp.WithDescription(descDryRunSQL),
			mcp.WithString("sql", mcp.Required(), mcp.Description("SQL statement to preview")),
		),
		dryRunSQLHandler(pipeline, logger),
	)

	s.AddTool(
		mcp.NewTool("validation_metrics",
			mcp.WithDescription(descValidationMetrics),
		),
		metricsHandler(pipeline),
	)
}

func validateSQLHandler(pipeline services.QueryValidationService, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult("missing_parameter", "sql is required"), nil
		}
		originalQuery, err := req.RequireString("original_query")
		if err != nil {
			return NewErrorResult("missing_parameter", "original_query is required"), nil
		}

		wireReq := &models.EnhancedValidationRequest{
			SQL:                  sqlText,
			OriginalQuery:        originalQuery,
			UserID:               getOptionalString(req, "user_id"),
			ValidationLevel:      getOptionalString(req, "validation_level"),
			EnableSelfCorrection: getOptionalBool(req, "enable_self_correction"),
			EnableDryRun:         getOptionalBool(req, "enable_dry_run"),
			SkipValidationTypes:  splitList(getOptionalString(req, "skip_validation_types")),
		}

		validationReq, err := wireReq.ToValidationRequest()
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}

		result, err := pipeline.ValidateQuery(ctx, validationReq)
		if err != nil {
			logger.Error("validation pipeline failed", zap.Error(err))
			return nil, fmt.Errorf("validation pipeline failed: %w", err)
		}

		return marshalResult(models.NewValidationResponse(result))
	}
}

func dryRunSQLHandler(pipeline services.QueryValidationService, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlText, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult("missing_parameter", "sql is required"), nil
		}

		wireReq := &models.EnhancedValidationRequest{
			SQL:             sqlText,
			OriginalQuery:   "dry run preview",
			ValidationLevel: string(models.LevelBasic),
			EnableDryRun:    true,
		}

		validationReq, err := wireReq.ToValidationRequest()
		if err != nil {
			return NewErrorResult("invalid_request", err.Error()), nil
		}

		result, err := pipeline.ValidateQuery(ctx, validationReq)
		if err != nil {
			logger.Error("dry run failed", zap.Error(err))
			return nil, fmt.Errorf("dry run failed: %w", err)
		}

		if result.DryRun == nil {
			return NewErrorResult("dry_run_unavailable", "statement was rejected before it could be previewed"), nil
		}
		return marshalResult(result.DryRun)
	}
}

func metricsHandler(pipeline services.QueryValidationService) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snapshot := pipeline.Metrics()
		return marshalResult(&snapshot)
	}
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, _ := args[key].(string)
	return val
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return false
	}
	val, _ := args[key].(bool)
	return val
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
