package validators

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// SchemaComplianceValidator checks the query against the resolved snapshot:
// tables exist, columns exist with compatible types, joins are complete and
// consistent, and required business filters are present.
type SchemaComplianceValidator interface {
	Validate(req *models.ValidationRequest, analysis *sql.Analysis, snapshot *schema.Snapshot) models.StageOutcome
}

type schemaComplianceValidator struct {
	logger *zap.Logger
}

// NewSchemaComplianceValidator creates the schema compliance stage validator.
func NewSchemaComplianceValidator(logger *zap.Logger) SchemaComplianceValidator {
	return &schemaComplianceValidator{
		logger: logger.Named("schema-validator"),
	}
}

var _ SchemaComplianceValidator = (*schemaComplianceValidator)(nil)

// numericTypes are the data types an additive aggregate can sensibly take.
var numericTypes = map[string]bool{
	"int": true, "integer": true, "bigint": true, "smallint": true, "tinyint": true,
	"decimal": true, "numeric": true, "float": true, "real": true, "double": true, "money": true,
}

func (v *schemaComplianceValidator) Validate(req *models.ValidationRequest, analysis *sql.Analysis, snapshot *schema.Snapshot) models.StageOutcome {
	outcome := models.StageOutcome{Type: models.TypeSchema, Executed: true}
	result := &models.SchemaComplianceResult{}
	outcome.Schema = result

	validTables := v.checkTables(analysis, snapshot, &outcome, result)
	v.checkColumns(analysis, snapshot, validTables, &outcome, result)
	v.checkJoins(analysis, snapshot, &outcome, result)
	v.checkContext(analysis, validTables, &outcome, result)

	result.ComplianceScore = (result.Tables.Score + result.Columns.Score +
		result.Joins.Score + result.Context.Score) / 4.0
	outcome.Score = result.ComplianceScore

	v.logger.Debug("schema stage complete",
		zap.String("request_id", req.RequestID.String()),
		zap.Float64("compliance", result.ComplianceScore),
		zap.Strings("invalid_tables", result.Tables.InvalidTables),
		zap.Strings("invalid_columns", result.Columns.InvalidColumns))

	return outcome
}

// checkTables verifies every referenced table exists and returns those that
// do for the downstream sub-checks.
func (v *schemaComplianceValidator) checkTables(analysis *sql.Analysis, snapshot *schema.Snapshot, outcome *models.StageOutcome, result *models.SchemaComplianceResult) []*schema.Table {
	names := analysis.TableNames()
	var valid []*schema.Table

	for _, name := range names {
		if table := snapshot.Table(name); table != nil {
			valid = append(valid, table)
			result.Tables.ValidTables = append(result.Tables.ValidTables, name)
			continue
		}
		result.Tables.InvalidTables = append(result.Tables.InvalidTables, name)
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSchema,
			Category: models.CategoryInvalidTable,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("table %q does not exist in the schema", name),
			Target:   name,
		})
	}

	result.Tables.Score = ratio(len(valid), len(names))
	return valid
}

// checkColumns verifies column references resolve against the referenced
// tables and that aggregated columns are numeric where the aggregate
// requires it.
func (v *schemaComplianceValidator) checkColumns(analysis *sql.Analysis, snapshot *schema.Snapshot, validTables []*schema.Table, outcome *models.StageOutcome, result *models.SchemaComplianceResult) {
	refs := collectColumnRefs(analysis)
	total, valid := 0, 0

	for _, ref := range refs {
		total++
		col := resolveColumn(ref, analysis, snapshot, validTables)
		if col != nil {
			valid++
			result.Columns.ValidColumns = append(result.Columns.ValidColumns, ref.String())
			continue
		}
		result.Columns.InvalidColumns = append(result.Columns.InvalidColumns, ref.String())
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSchema,
			Category: models.CategoryInvalidColumn,
			Severity: models.SeverityCritical,
			Message:  fmt.Sprintf("column %q does not exist in the referenced tables", ref.String()),
			Target:   ref.String(),
		})
	}

	// Additive aggregates over non-numeric columns.
	for _, agg := range analysis.Aggregates {
		if agg.Func != "SUM" && agg.Func != "AVG" {
			continue
		}
		argRefs := sql.Analyze("SELECT " + agg.Arg + " FROM _x").SelectColumns
		for _, ref := range argRefs {
			col := resolveColumn(ref, analysis, snapshot, validTables)
			if col != nil && !numericTypes[strings.ToLower(col.DataType)] {
				warning := fmt.Sprintf("%s over non-numeric column %q (%s)", agg.Func, ref.String(), col.DataType)
				result.Columns.TypeWarnings = append(result.Columns.TypeWarnings, warning)
				outcome.Issues = append(outcome.Issues, models.ValidationIssue{
					Type:     models.TypeSchema,
					Category: models.CategoryTypeMismatch,
					Severity: models.SeverityWarning,
					Message:  warning,
					Target:   ref.String(),
				})
			}
		}
	}

	result.Columns.Score = ratio(valid, total)
}

// checkJoins flags joins with no condition and joins between tables with no
// declared relationship.
func (v *schemaComplianceValidator) checkJoins(analysis *sql.Analysis, snapshot *schema.Snapshot, outcome *models.StageOutcome, result *models.SchemaComplianceResult) {
	result.Joins.JoinCount = len(analysis.Joins)
	problems := 0

	for _, join := range analysis.Joins {
		if join.JoinType == "CROSS" {
			continue
		}
		if !join.HasCondition {
			problems++
			desc := fmt.Sprintf("%s join to %q has no condition", strings.ToLower(join.JoinType), join.Table.Name)
			result.Joins.MissingConditions = append(result.Joins.MissingConditions, desc)
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeSchema,
				Category: models.CategoryMissingJoinCondition,
				Severity: models.SeverityError,
				Message:  desc,
				Target:   join.Table.Name,
			})
			continue
		}

		joined := snapshot.Table(join.Table.Name)
		if joined == nil {
			continue // already reported by checkTables
		}
		if !v.hasDeclaredRelationship(joined, analysis, snapshot) {
			desc := fmt.Sprintf("no declared relationship between %q and the other referenced tables", join.Table.Name)
			result.Joins.InconsistentJoins = append(result.Joins.InconsistentJoins, desc)
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeSchema,
				Category: models.CategoryInconsistentJoin,
				Severity: models.SeverityWarning,
				Message:  desc,
				Target:   join.Table.Name,
			})
		}
	}

	result.Joins.Score = ratio(len(analysis.Joins)-problems, len(analysis.Joins))
}

// hasDeclaredRelationship reports whether the joined table shares a foreign
// key with any other referenced table, in either direction. Tables with no
// declared keys are given the benefit of the doubt.
func (v *schemaComplianceValidator) hasDeclaredRelationship(joined *schema.Table, analysis *sql.Analysis, snapshot *schema.Snapshot) bool {
	sawDeclaredKeys := len(joined.ForeignKeys) > 0
	for _, name := range analysis.TableNames() {
		if strings.EqualFold(name, joined.Name) {
			continue
		}
		other := snapshot.Table(name)
		if other == nil {
			continue
		}
		if len(other.ForeignKeys) > 0 {
			sawDeclaredKeys = true
		}
		if joined.HasForeignKeyTo(other.Name) || other.HasForeignKeyTo(joined.Name) {
			return true
		}
	}
	return !sawDeclaredKeys
}

// checkContext verifies that tables declaring required business filters are
// actually filtered on them.
func (v *schemaComplianceValidator) checkContext(analysis *sql.Analysis, validTables []*schema.Table, outcome *models.StageOutcome, result *models.SchemaComplianceResult) {
	whereCols := make(map[string]bool)
	for _, ref := range analysis.WhereColumns {
		whereCols[strings.ToLower(ref.Name)] = true
	}

	required, present := 0, 0
	for _, table := range validTables {
		for _, filter := range table.RequiredFilters {
			required++
			if whereCols[strings.ToLower(filter)] {
				present++
				continue
			}
			result.Context.MissingFilters = append(result.Context.MissingFilters, table.Name+"."+filter)
			outcome.Issues = append(outcome.Issues, models.ValidationIssue{
				Type:     models.TypeSchema,
				Category: models.CategoryMissingContext,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("queries against %q must filter on %q", table.Name, filter),
				Target:   table.Name + "." + filter,
			})
		}
	}

	result.Context.Score = ratio(present, required)
}

// collectColumnRefs gathers every resolvable column reference, skipping *.
func collectColumnRefs(analysis *sql.Analysis) []sql.ColumnRef {
	var refs []sql.ColumnRef
	for _, group := range [][]sql.ColumnRef{analysis.SelectColumns, analysis.WhereColumns, analysis.GroupByColumns} {
		for _, ref := range group {
			if ref.Name == "*" || ref.Name == "" {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// resolveColumn finds the column a reference points at. Qualified
// references resolve through their alias; bare references search every
// valid referenced table.
func resolveColumn(ref sql.ColumnRef, analysis *sql.Analysis, snapshot *schema.Snapshot, validTables []*schema.Table) *schema.Column {
	if ref.Qualifier != "" {
		tableName := analysis.ResolveQualifier(ref.Qualifier)
		if tableName == "" {
			tableName = ref.Qualifier
		}
		table := snapshot.Table(tableName)
		if table == nil {
			return nil
		}
		return table.Column(ref.Name)
	}

	for _, table := range validTables {
		if col := table.Column(ref.Name); col != nil {
			return col
		}
	}
	return nil
}

// ratio returns num/den, or 1.0 when there is nothing to check.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 1.0
	}
	if num < 0 {
		num = 0
	}
	return float64(num) / float64(den)
}
