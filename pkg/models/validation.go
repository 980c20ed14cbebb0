// Package models defines the canonical data model for the SQL validation
// and self-correction pipeline.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/apperrors"
)

// ValidationLevel is the configured strictness tier. It controls which
// stages run and which pass thresholds apply.
type ValidationLevel string

const (
	LevelBasic         ValidationLevel = "basic"
	LevelStandard      ValidationLevel = "standard"
	LevelComprehensive ValidationLevel = "comprehensive"
	LevelStrict        ValidationLevel = "strict"
)

// ParseValidationLevel normalizes a user-supplied level string.
// An empty string defaults to LevelStandard.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch ValidationLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LevelStandard, nil
	case LevelBasic:
		return LevelBasic, nil
	case LevelStandard:
		return LevelStandard, nil
	case LevelComprehensive:
		return LevelComprehensive, nil
	case LevelStrict:
		return LevelStrict, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownLevel, s)
	}
}

// StaticStages returns the static validation stages that run at this level,
// in their canonical order. DryRun is gated separately by the request flag.
func (l ValidationLevel) StaticStages() []ValidationType {
	switch l {
	case LevelBasic:
		return []ValidationType{TypeSecurity}
	case LevelStandard:
		return []ValidationType{TypeSecurity, TypeSemantic}
	default:
		return []ValidationType{TypeSecurity, TypeSemantic, TypeSchema, TypeBusinessLogic}
	}
}

// ValidationType identifies a pipeline stage.
type ValidationType string

const (
	TypeSecurity      ValidationType = "security"
	TypeSemantic      ValidationType = "semantic"
	TypeSchema        ValidationType = "schema"
	TypeBusinessLogic ValidationType = "business_logic"
	TypeDryRun        ValidationType = "dry_run"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IssueCategory is a stable machine-readable category for a finding.
type IssueCategory string

const (
	CategoryDestructiveStatement IssueCategory = "destructive_statement"
	CategoryMultipleStatements   IssueCategory = "multiple_statements"
	CategoryInjectionPattern     IssueCategory = "injection_pattern"
	CategoryPrivilegeMisuse      IssueCategory = "privilege_misuse"
	CategoryRiskyConstruct       IssueCategory = "risky_construct"
	CategoryMissingConcept       IssueCategory = "missing_concept"
	CategoryExtraneousConcept    IssueCategory = "extraneous_concept"
	CategoryAggregationMismatch  IssueCategory = "aggregation_mismatch"
	CategoryInvalidTable         IssueCategory = "invalid_table"
	CategoryInvalidColumn        IssueCategory = "invalid_column"
	CategoryTypeMismatch         IssueCategory = "type_mismatch"
	CategoryMissingJoinCondition IssueCategory = "missing_join_condition"
	CategoryInconsistentJoin     IssueCategory = "inconsistent_join"
	CategoryMissingContext       IssueCategory = "missing_context"
	CategoryAccessDenied         IssueCategory = "access_denied"
	CategorySensitiveExposure    IssueCategory = "sensitive_exposure"
	CategoryAggregationError     IssueCategory = "aggregation_error"
	CategoryExecutionWarning     IssueCategory = "execution_warning"
	CategoryStageIndeterminate   IssueCategory = "stage_indeterminate"
)

// unfixableCategories are critical findings that self-correction must not
// attempt to repair: regenerating SQL around a destructive statement or a
// privilege escalation is itself a risk.
var unfixableCategories = map[IssueCategory]bool{
	CategoryDestructiveStatement: true,
	CategoryPrivilegeMisuse:      true,
}

// IsUnfixable reports whether a category is beyond self-correction.
func (c IssueCategory) IsUnfixable() bool {
	return unfixableCategories[c]
}

// ValidationIssue is a single severity-tagged finding from one stage.
type ValidationIssue struct {
	Type     ValidationType `json:"type"`
	Category IssueCategory  `json:"category"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Target   string         `json:"target,omitempty"` // table, column, or SQL fragment the issue refers to
}

// ValidationRequest is the immutable input to the pipeline, created once
// per call.
type ValidationRequest struct {
	RequestID            uuid.UUID         `json:"request_id"`
	SQL                  string            `json:"sql"`
	OriginalQuery        string            `json:"original_query"`
	Context              map[string]string `json:"context,omitempty"`
	UserID               string            `json:"user_id,omitempty"`
	EnableSelfCorrection bool              `json:"enable_self_correction"`
	EnableDryRun         bool              `json:"enable_dry_run"`
	Level                ValidationLevel   `json:"validation_level"`
	SkipValidationTypes  []ValidationType  `json:"skip_validation_types,omitempty"`
}

// Validate rejects malformed input before the pipeline starts.
func (r *ValidationRequest) Validate() error {
	if strings.TrimSpace(r.SQL) == "" {
		return apperrors.ErrEmptySQL
	}
	if strings.TrimSpace(r.OriginalQuery) == "" {
		return apperrors.ErrEmptyQuestion
	}
	if _, err := ParseValidationLevel(string(r.Level)); err != nil {
		return err
	}
	return nil
}

// ShouldSkip reports whether the given stage was explicitly skipped by the
// caller.
func (r *ValidationRequest) ShouldSkip(t ValidationType) bool {
	for _, s := range r.SkipValidationTypes {
		if s == t {
			return true
		}
	}
	return false
}

// StageOutcome is the tagged per-stage variant. Exactly one typed
// sub-result pointer is non-nil when Executed is true; a stage skipped by
// level or by request policy has Executed=false and a SkipReason, which is
// distinct from a stage that ran but could not complete (Indeterminate).
type StageOutcome struct {
	Type          ValidationType    `json:"type"`
	Executed      bool              `json:"executed"`
	SkipReason    string            `json:"skip_reason,omitempty"`
	Indeterminate bool              `json:"indeterminate,omitempty"`
	Score         float64           `json:"score"`
	Issues        []ValidationIssue `json:"issues,omitempty"`

	Security      *SecurityValidationResult      `json:"security,omitempty"`
	Semantic      *SemanticValidationResult      `json:"semantic,omitempty"`
	Schema        *SchemaComplianceResult        `json:"schema,omitempty"`
	BusinessLogic *BusinessLogicValidationResult `json:"business_logic,omitempty"`
}

// SkippedStage builds the outcome for a stage that did not run.
func SkippedStage(t ValidationType, reason string) StageOutcome {
	return StageOutcome{Type: t, Executed: false, SkipReason: reason}
}

// IndeterminateStage builds the worst-case outcome for a stage whose
// external dependency failed after retries. The score is pinned to zero so
// aggregation treats the stage as failed rather than silently ignoring it.
func IndeterminateStage(t ValidationType, cause error) StageOutcome {
	return StageOutcome{
		Type:          t,
		Executed:      true,
		Indeterminate: true,
		Score:         0,
		Issues: []ValidationIssue{{
			Type:     t,
			Category: CategoryStageIndeterminate,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("stage could not complete: %v", cause),
		}},
	}
}

// HasCritical reports whether the stage produced any critical finding.
func (o *StageOutcome) HasCritical() bool {
	for _, iss := range o.Issues {
		if iss.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// SecurityValidationResult details the static safety check.
type SecurityValidationResult struct {
	IsSecure              bool     `json:"is_secure"`
	StatementType         string   `json:"statement_type"`
	InjectionFingerprints []string `json:"injection_fingerprints,omitempty"`
}

// SemanticInconsistency flags a mismatch between SQL and intent.
type SemanticInconsistency struct {
	Kind    IssueCategory `json:"kind"` // missing_concept, extraneous_concept, aggregation_mismatch
	Term    string        `json:"term"`
	Message string        `json:"message"`
}

// BusinessTermValidation summarizes glossary-term matching.
type BusinessTermValidation struct {
	MatchedTerms   []string `json:"matched_terms,omitempty"`
	UnmatchedTerms []string `json:"unmatched_terms,omitempty"`
	Score          float64  `json:"score"`
}

// SemanticValidationResult details intent alignment.
type SemanticValidationResult struct {
	AlignmentScore         float64                 `json:"alignment_score"`
	AlignmentReason        string                  `json:"alignment_reason"`
	Inconsistencies        []SemanticInconsistency `json:"inconsistencies,omitempty"`
	BusinessTermValidation BusinessTermValidation  `json:"business_term_validation"`
	ConfidenceScore        float64                 `json:"confidence_score"`
}

// TableValidationResult reports table existence and accessibility.
type TableValidationResult struct {
	Score         float64  `json:"score"`
	ValidTables   []string `json:"valid_tables,omitempty"`
	InvalidTables []string `json:"invalid_tables,omitempty"`
}

// ColumnValidationResult reports column existence and type compatibility.
type ColumnValidationResult struct {
	Score          float64  `json:"score"`
	ValidColumns   []string `json:"valid_columns,omitempty"`
	InvalidColumns []string `json:"invalid_columns,omitempty"`
	TypeWarnings   []string `json:"type_warnings,omitempty"`
}

// JoinValidationResult reports join condition completeness and consistency.
type JoinValidationResult struct {
	Score             float64  `json:"score"`
	JoinCount         int      `json:"join_count"`
	MissingConditions []string `json:"missing_conditions,omitempty"`
	InconsistentJoins []string `json:"inconsistent_joins,omitempty"`
}

// ContextValidationResult reports required-filter completeness.
type ContextValidationResult struct {
	Score          float64  `json:"score"`
	MissingFilters []string `json:"missing_filters,omitempty"`
}

// SchemaComplianceResult aggregates the four schema sub-checks. The
// compliance score is the mean of the sub-scores.
type SchemaComplianceResult struct {
	ComplianceScore float64                 `json:"compliance_score"`
	Tables          TableValidationResult   `json:"tables"`
	Columns         ColumnValidationResult  `json:"columns"`
	Joins           JoinValidationResult    `json:"joins"`
	Context         ContextValidationResult `json:"context"`
}

// RuleViolation is one business-rule finding, flattened for reporting.
type RuleViolation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// AccessValidationResult reports access-rights findings.
type AccessValidationResult struct {
	Score         float64  `json:"score"`
	DeniedTables  []string `json:"denied_tables,omitempty"`
	DeniedColumns []string `json:"denied_columns,omitempty"`
}

// SensitivityValidationResult reports unmasked sensitive-column exposure.
type SensitivityValidationResult struct {
	Score          float64  `json:"score"`
	ExposedColumns []string `json:"exposed_columns,omitempty"`
}

// AggregationValidationResult reports GROUP BY / aggregate misuse.
type AggregationValidationResult struct {
	Score    float64  `json:"score"`
	Problems []string `json:"problems,omitempty"`
}

// BusinessLogicValidationResult aggregates the three policy axes. The
// score is a weighted mean; access and sensitivity carry more weight than
// aggregation-style issues.
type BusinessLogicValidationResult struct {
	BusinessLogicScore float64                     `json:"business_logic_score"`
	RuleViolations     []RuleViolation             `json:"rule_violations,omitempty"`
	Access             AccessValidationResult      `json:"access"`
	Sensitivity        SensitivityValidationResult `json:"sensitivity"`
	Aggregation        AggregationValidationResult `json:"aggregation"`
}

// PerformanceMetrics carries cost estimates from the execution engine,
// populated only when the backing engine provides them.
type PerformanceMetrics struct {
	LogicalReads  int64         `json:"logical_reads,omitempty"`
	PhysicalReads int64         `json:"physical_reads,omitempty"`
	CPUTime       time.Duration `json:"cpu_time,omitempty"`
	EstimatedCost float64       `json:"estimated_cost,omitempty"`
}

// DryRunExecutionResult is the bounded read-only execution preview.
type DryRunExecutionResult struct {
	CanExecute             bool                `json:"can_execute"`
	ExecutedSuccessfully   bool                `json:"executed_successfully"`
	EstimatedExecutionTime time.Duration       `json:"estimated_execution_time"`
	EstimatedRowCount      int64               `json:"estimated_row_count"`
	Warnings               []string            `json:"warnings,omitempty"`
	Errors                 []string            `json:"errors,omitempty"`
	ExecutionPlan          string              `json:"execution_plan,omitempty"`
	Performance            *PerformanceMetrics `json:"performance,omitempty"`
}

// ValidationResult is the single aggregate outcome returned by the
// orchestrator. It is built incrementally across stages; the correction
// history grows monotonically during self-correction and is frozen once
// the loop terminates.
type ValidationResult struct {
	RequestID        uuid.UUID               `json:"request_id"`
	IsValid          bool                    `json:"is_valid"`
	OverallScore     float64                 `json:"overall_score"`
	CanSelfCorrect   bool                    `json:"can_self_correct"`
	IsSelfCorrected  bool                    `json:"is_self_corrected"`
	OriginalSQL      string                  `json:"original_sql"`
	ValidatedSQL     string                  `json:"validated_sql"`
	CorrectionReason string                  `json:"correction_reason,omitempty"`
	Stages           []StageOutcome          `json:"stages"`
	DryRun           *DryRunExecutionResult  `json:"dry_run,omitempty"`
	CorrectionHistory []SelfCorrectionAttempt `json:"correction_history,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
	Duration         time.Duration           `json:"duration"`
}

// Stage returns the outcome for the given stage type, or nil if the
// orchestrator never considered it.
func (r *ValidationResult) Stage(t ValidationType) *StageOutcome {
	for i := range r.Stages {
		if r.Stages[i].Type == t {
			return &r.Stages[i]
		}
	}
	return nil
}

// HasCritical reports whether any executed stage produced a critical
// finding.
func (r *ValidationResult) HasCritical() bool {
	for i := range r.Stages {
		if r.Stages[i].Executed && r.Stages[i].HasCritical() {
			return true
		}
	}
	return false
}

// HasUnfixableCritical reports whether any critical finding belongs to a
// category self-correction must not attempt to repair.
func (r *ValidationResult) HasUnfixableCritical() bool {
	for i := range r.Stages {
		if !r.Stages[i].Executed {
			continue
		}
		for _, iss := range r.Stages[i].Issues {
			if iss.Severity == SeverityCritical && iss.Category.IsUnfixable() {
				return true
			}
		}
	}
	return false
}

// AllIssues flattens every issue across executed stages.
func (r *ValidationResult) AllIssues() []ValidationIssue {
	var issues []ValidationIssue
	for i := range r.Stages {
		if r.Stages[i].Executed {
			issues = append(issues, r.Stages[i].Issues...)
		}
	}
	return issues
}
