package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/apperrors"
)

// CorrectionStrategy names the failure category a correction attempt
// targets. Strategies are tried in the configured order, prioritized by
// the failing stage's sub-score.
type CorrectionStrategy string

const (
	StrategySecurity      CorrectionStrategy = "security"
	StrategySemantic      CorrectionStrategy = "semantic"
	StrategySchema        CorrectionStrategy = "schema"
	StrategyBusinessLogic CorrectionStrategy = "business_logic"
)

// ParseCorrectionStrategy normalizes a configured strategy name.
func ParseCorrectionStrategy(s string) (CorrectionStrategy, error) {
	switch CorrectionStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategySecurity:
		return StrategySecurity, nil
	case StrategySemantic:
		return StrategySemantic, nil
	case StrategySchema:
		return StrategySchema, nil
	case StrategyBusinessLogic:
		return StrategyBusinessLogic, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownStrategy, s)
	}
}

// ValidationType maps a strategy to the stage it addresses.
func (s CorrectionStrategy) ValidationType() ValidationType {
	switch s {
	case StrategySecurity:
		return TypeSecurity
	case StrategySemantic:
		return TypeSemantic
	case StrategySchema:
		return TypeSchema
	default:
		return TypeBusinessLogic
	}
}

// SelfCorrectionAttempt records one correction cycle. Attempts are
// append-only: once created they are never mutated.
type SelfCorrectionAttempt struct {
	AttemptNumber    int                `json:"attempt_number"`
	AttemptTimestamp time.Time          `json:"attempt_timestamp"`
	Strategy         CorrectionStrategy `json:"strategy"`
	OriginalSQL      string             `json:"original_sql"`
	CorrectedSQL     string             `json:"corrected_sql,omitempty"`
	CorrectionReason string             `json:"correction_reason,omitempty"`
	ImprovementScore float64            `json:"improvement_score"`
	WasSuccessful    bool               `json:"was_successful"`
	IssuesAddressed  []string           `json:"issues_addressed,omitempty"`
}

// SelfCorrectionConfiguration is the loop policy for the correction engine.
type SelfCorrectionConfiguration struct {
	MaxCorrectionAttempts   int                  `json:"max_correction_attempts"`
	MinImprovementThreshold float64              `json:"min_improvement_threshold"`
	CorrectionTimeout       time.Duration        `json:"correction_timeout"`
	CorrectionStrategies    []CorrectionStrategy `json:"correction_strategies"`
}

// Validate checks the loop policy invariants.
func (c *SelfCorrectionConfiguration) Validate() error {
	if c.MaxCorrectionAttempts < 0 {
		return fmt.Errorf("max correction attempts must be >= 0, got %d", c.MaxCorrectionAttempts)
	}
	if c.MinImprovementThreshold < 0 {
		return fmt.Errorf("min improvement threshold must be >= 0, got %f", c.MinImprovementThreshold)
	}
	if c.CorrectionTimeout <= 0 {
		return fmt.Errorf("correction timeout must be positive, got %s", c.CorrectionTimeout)
	}
	return nil
}
