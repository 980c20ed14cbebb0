package validators

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// BusinessLogicValidator enforces organizational policy on an otherwise
// well-formed query: access rights, sensitive-data exposure, and
// aggregation correctness.
type BusinessLogicValidator interface {
	Validate(req *models.ValidationRequest, analysis *sql.Analysis, snapshot *schema.Snapshot) models.StageOutcome
}

type businessLogicValidator struct {
	policy *schema.AccessPolicy
	cfg    *config.ValidationConfig
	logger *zap.Logger
}

// NewBusinessLogicValidator creates the business logic stage validator.
func NewBusinessLogicValidator(policy *schema.AccessPolicy, cfg *config.ValidationConfig, logger *zap.Logger) BusinessLogicValidator {
	return &businessLogicValidator{
		policy: policy,
		cfg:    cfg,
		logger: logger.Named("business-validator"),
	}
}

var _ BusinessLogicValidator = (*businessLogicValidator)(nil)

func (v *businessLogicValidator) Validate(req *models.ValidationRequest, analysis *sql.Analysis, snapshot *schema.Snapshot) models.StageOutcome {
	outcome := models.StageOutcome{Type: models.TypeBusinessLogic, Executed: true}
	result := &models.BusinessLogicValidationResult{}
	outcome.BusinessLogic = result

	role := v.policy.PolicyFor(req.UserID)

	v.checkAccess(analysis, role, &outcome, result)
	v.checkSensitivity(analysis, snapshot, role, &outcome, result)
	v.checkAggregation(analysis, &outcome, result)

	result.BusinessLogicScore = result.Access.Score*v.cfg.AccessWeight +
		result.Sensitivity.Score*v.cfg.SensitivityWeight +
		result.Aggregation.Score*v.cfg.AggregationWeight
	outcome.Score = result.BusinessLogicScore

	for _, iss := range outcome.Issues {
		result.RuleViolations = append(result.RuleViolations, models.RuleViolation{
			Rule:     string(iss.Category),
			Severity: iss.Severity,
			Message:  iss.Message,
		})
	}

	v.logger.Debug("business logic stage complete",
		zap.String("request_id", req.RequestID.String()),
		zap.String("user_id", req.UserID),
		zap.Float64("score", result.BusinessLogicScore),
		zap.Int("violations", len(result.RuleViolations)))

	return outcome
}

// checkAccess applies the role's table and column rights.
func (v *businessLogicValidator) checkAccess(analysis *sql.Analysis, role schema.RolePolicy, outcome *models.StageOutcome, result *models.BusinessLogicValidationResult) {
	names := analysis.TableNames()
	denied := 0

	for _, name := range names {
		if role.TableAllowed(name) {
			continue
		}
		denied++
		result.Access.DeniedTables = append(result.Access.DeniedTables, name)
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeBusinessLogic,
			Category: models.CategoryAccessDenied,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("role does not permit access to table %q", name),
			Target:   name,
		})
	}

	for _, ref := range collectColumnRefs(analysis) {
		table := analysis.ResolveQualifier(ref.Qualifier)
		if role.ColumnDenied(table, ref.Name) {
			result.Access.DeniedColumns = append(result.Access.DeniedColumns, ref.String())
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeBusinessLogic,
				Category: models.CategoryAccessDenied,
				Severity: models.SeverityCritical,
				Message:  fmt.Sprintf("role does not permit access to column %q", ref.String()),
				Target:   ref.String(),
			})
		}
	}

	result.Access.Score = ratio(len(names)-denied, len(names))
	if len(result.Access.DeniedColumns) > 0 && result.Access.Score > 0.5 {
		result.Access.Score = 0.5
	}
}

// checkSensitivity flags sensitive columns returned to the caller. Filtering
// on a sensitive column is tolerated; selecting it unmasked is not.
func (v *businessLogicValidator) checkSensitivity(analysis *sql.Analysis, snapshot *schema.Snapshot, role schema.RolePolicy, outcome *models.StageOutcome, result *models.BusinessLogicValidationResult) {
	exposed := func(column, table string) {
		target := column
		if table != "" {
			target = table + "." + column
		}
		result.Sensitivity.ExposedColumns = append(result.Sensitivity.ExposedColumns, target)
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeBusinessLogic,
			Category: models.CategorySensitiveExposure,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("sensitive column %q is returned unmasked", target),
			Target:   target,
		})
	}

	if analysis.SelectStar {
		// SELECT * exposes whatever sensitive columns the tables carry.
		for _, name := range analysis.TableNames() {
			table := snapshot.Table(name)
			if table == nil {
				continue
			}
			for _, col := range table.Columns {
				if col.IsSensitive || role.ColumnMasked(table.Name, col.Name) {
					exposed(col.Name, table.Name)
				}
			}
		}
	}

	for _, ref := range analysis.SelectColumns {
		if ref.Name == "*" || ref.Name == "" {
			continue
		}
		tableName := analysis.ResolveQualifier(ref.Qualifier)
		if role.ColumnMasked(tableName, ref.Name) {
			exposed(ref.Name, tableName)
			continue
		}
		for _, name := range analysis.TableNames() {
			table := snapshot.Table(name)
			if table == nil {
				continue
			}
			if col := table.Column(ref.Name); col != nil && col.IsSensitive {
				exposed(ref.Name, table.Name)
				break
			}
		}
	}

	score := 1.0 - 0.25*float64(len(result.Sensitivity.ExposedColumns))
	if score < 0 {
		score = 0
	}
	result.Sensitivity.Score = score
}

// checkAggregation flags structural aggregate misuse the database would
// reject or silently mis-answer.
func (v *businessLogicValidator) checkAggregation(analysis *sql.Analysis, outcome *models.StageOutcome, result *models.BusinessLogicValidationResult) {
	problem := func(msg string) {
		result.Aggregation.Problems = append(result.Aggregation.Problems, msg)
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeBusinessLogic,
			Category: models.CategoryAggregationError,
			Severity: models.SeverityError,
			Message:  msg,
		})
	}

	if analysis.AggregateInWhere {
		problem("aggregate function in WHERE clause; use HAVING")
	}

	if analysis.HasAggregates() && len(analysis.SelectColumns) > 0 {
		grouped := make(map[string]bool)
		for _, ref := range analysis.GroupByColumns {
			grouped[strings.ToLower(ref.String())] = true
			grouped[strings.ToLower(ref.Name)] = true
		}
		for _, ref := range analysis.SelectColumns {
			if ref.Name == "*" || ref.Name == "" {
				continue
			}
			if !grouped[strings.ToLower(ref.String())] && !grouped[strings.ToLower(ref.Name)] {
				problem(fmt.Sprintf("column %q is selected alongside aggregates but not grouped", ref.String()))
			}
		}
	}

	score := 1.0 - 0.5*float64(len(result.Aggregation.Problems))
	if score < 0 {
		score = 0
	}
	result.Aggregation.Score = score
}
