package sql

import (
	"regexp"
	"strings"
)

// StatementType classifies a SQL statement by its leading keyword.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementCall    StatementType = "CALL"
	StatementDDL     StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE
	StatementUnknown StatementType = "UNKNOWN" // unrecognized or blocked constructs
)

// modifyingCTEPattern matches CTEs containing data-modifying operations,
// e.g. WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted.
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// DetectStatementType determines the statement type from the first keyword.
// WITH-statements are treated as SELECT unless the CTE body modifies data.
func DetectStatementType(sqlText string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(sqlText))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return StatementSelect

	case strings.HasPrefix(normalized, "WITH"):
		if modifyingCTEPattern.MatchString(sqlText) {
			return StatementUnknown
		}
		return StatementSelect

	case strings.HasPrefix(normalized, "INSERT"):
		return StatementInsert

	case strings.HasPrefix(normalized, "UPDATE"):
		return StatementUpdate

	case strings.HasPrefix(normalized, "DELETE"):
		return StatementDelete

	case strings.HasPrefix(normalized, "CALL"),
		strings.HasPrefix(normalized, "EXEC"):
		return StatementCall

	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return StatementDDL

	// Transaction control has no place in generated analytics SQL.
	case strings.HasPrefix(normalized, "BEGIN"),
		strings.HasPrefix(normalized, "COMMIT"),
		strings.HasPrefix(normalized, "ROLLBACK"),
		strings.HasPrefix(normalized, "SAVEPOINT"):
		return StatementUnknown

	default:
		return StatementUnknown
	}
}

// IsModifying reports whether the statement type can change data.
func (t StatementType) IsModifying() bool {
	switch t {
	case StatementInsert, StatementUpdate, StatementDelete, StatementCall:
		return true
	default:
		return false
	}
}

// IsReadOnly reports whether the statement is a plain read.
func (t StatementType) IsReadOnly() bool {
	return t == StatementSelect
}
