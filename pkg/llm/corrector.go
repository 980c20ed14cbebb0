// Package llm provides the model clients that generate SQL corrections.
package llm

import (
	"context"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

// CorrectionRequest carries everything the model needs to repair a failed
// query: the SQL, the question it was generated for, the strategy being
// applied, and the issues that strategy targets.
type CorrectionRequest struct {
	SQL           string
	Question      string
	Strategy      models.CorrectionStrategy
	Issues        []models.ValidationIssue
	SchemaContext string // rendered table/column listing, may be empty
}

// CorrectionResult is the model's proposed repair.
type CorrectionResult struct {
	CorrectedSQL    string
	Reason          string
	IssuesAddressed []string
}

// SQLCorrector generates a corrected statement for a failed validation.
// Use this interface for dependency injection to enable mocking in tests.
type SQLCorrector interface {
	Correct(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error)

	// Model returns the configured model name, for logging and attempt
	// records.
	Model() string
}
