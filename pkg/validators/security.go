// Package validators implements the static validation stages of the
// pipeline. Each validator is a pure function of the request plus the
// resolved metadata; anything fallible (catalog access, execution) lives in
// the services layer.
package validators

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// SecurityValidator is the first stage: statement-shape and injection
// checks. It is pure and cheap, which is why the orchestrator runs it
// before fanning out the remaining stages.
type SecurityValidator interface {
	Validate(req *models.ValidationRequest) models.StageOutcome
}

type securityValidator struct {
	cfg    *config.ValidationConfig
	logger *zap.Logger
}

// NewSecurityValidator creates the security stage validator.
func NewSecurityValidator(cfg *config.ValidationConfig, logger *zap.Logger) SecurityValidator {
	return &securityValidator{
		cfg:    cfg,
		logger: logger.Named("security-validator"),
	}
}

var _ SecurityValidator = (*securityValidator)(nil)

func (v *securityValidator) Validate(req *models.ValidationRequest) models.StageOutcome {
	outcome := models.StageOutcome{Type: models.TypeSecurity, Executed: true}
	result := &models.SecurityValidationResult{}
	outcome.Security = result

	normalized, err := sql.Normalize(req.SQL)
	if err != nil {
		result.StatementType = string(sql.StatementUnknown)
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSecurity,
			Category: models.CategoryMultipleStatements,
			Severity: models.SeverityCritical,
			Message:  err.Error(),
		})
		return finishSecurity(outcome, result, v.cfg.SecurityWarningStep)
	}

	stmtType := sql.DetectStatementType(normalized)
	result.StatementType = string(stmtType)
	if stmtType != sql.StatementSelect {
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSecurity,
			Category: models.CategoryDestructiveStatement,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("only SELECT statements are permitted, got %s", stmtType),
		})
	}

	for _, finding := range sql.CheckInjection(normalized) {
		if finding.Fingerprint != "" {
			result.InjectionFingerprints = append(result.InjectionFingerprints, finding.Fingerprint)
		}
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSecurity,
			Category: models.CategoryInjectionPattern,
			Severity: models.SeverityCritical,
			Message:  finding.Reason,
			Target:   finding.Fragment,
		})
	}

	for _, hit := range sql.CheckPrivilegeMisuse(normalized) {
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSecurity,
			Category: models.CategoryPrivilegeMisuse,
			Severity: models.SeverityCritical,
			Message:  "privilege-altering construct is not allowed in generated SQL",
			Target:   hit,
		})
	}

	// Hygiene warnings only make sense for a statement that passed the
	// hard gates.
	if stmtType == sql.StatementSelect {
		analysis := sql.Analyze(normalized)
		if analysis.SelectStar {
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeSecurity,
				Category: models.CategoryRiskyConstruct,
				Severity: models.SeverityWarning,
				Message:  "SELECT * exposes every column including future additions",
			})
		}
		if !analysis.HasWhere && !analysis.HasAggregates() {
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeSecurity,
				Category: models.CategoryRiskyConstruct,
				Severity: models.SeverityWarning,
				Message:  "unfiltered query reads the entire table",
			})
		}
	}

	v.logger.Debug("security stage complete",
		zap.String("request_id", req.RequestID.String()),
		zap.String("sql", logging.SanitizeQuery(req.SQL)),
		zap.String("statement_type", result.StatementType),
		zap.Int("issues", len(outcome.Issues)))

	return finishSecurity(outcome, result, v.cfg.SecurityWarningStep)
}

// finishSecurity derives the stage score: zero on any critical finding,
// otherwise 1.0 minus a fixed step per warning.
func finishSecurity(outcome models.StageOutcome, result *models.SecurityValidationResult, warningStep float64) models.StageOutcome {
	warnings := 0
	for _, iss := range outcome.Issues {
		switch iss.Severity {
		case models.SeverityCritical:
			result.IsSecure = false
			outcome.Score = 0
			return outcome
		case models.SeverityWarning:
			warnings++
		}
	}

	result.IsSecure = true
	outcome.Score = 1.0 - warningStep*float64(warnings)
	if outcome.Score < 0 {
		outcome.Score = 0
	}
	return outcome
}
