package sql

import "testing"

func TestDetectStatementType(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want StatementType
	}{
		{"select", "SELECT * FROM users", StatementSelect},
		{"select lowercase", "select id from users", StatementSelect},
		{"select with whitespace", "  \n SELECT 1", StatementSelect},
		{"cte select", "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", StatementSelect},
		{"modifying cte", "WITH deleted AS (DELETE FROM orders RETURNING *) SELECT * FROM deleted", StatementUnknown},
		{"insert", "INSERT INTO users VALUES (1)", StatementInsert},
		{"update", "UPDATE users SET name = 'x'", StatementUpdate},
		{"delete", "DELETE FROM users", StatementDelete},
		{"call", "CALL refresh_stats()", StatementCall},
		{"exec", "EXEC sp_who", StatementCall},
		{"drop", "DROP TABLE Users", StatementDDL},
		{"create", "CREATE TABLE t (id int)", StatementDDL},
		{"alter", "ALTER TABLE t ADD c int", StatementDDL},
		{"truncate", "TRUNCATE TABLE t", StatementDDL},
		{"begin", "BEGIN TRANSACTION", StatementUnknown},
		{"gibberish", "FOO BAR", StatementUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectStatementType(tt.sql); got != tt.want {
				t.Errorf("DetectStatementType(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestStatementTypeIsModifying(t *testing.T) {
	modifying := []StatementType{StatementInsert, StatementUpdate, StatementDelete, StatementCall}
	for _, st := range modifying {
		if !st.IsModifying() {
			t.Errorf("%v.IsModifying() = false, want true", st)
		}
	}
	for _, st := range []StatementType{StatementSelect, StatementDDL, StatementUnknown} {
		if st.IsModifying() {
			t.Errorf("%v.IsModifying() = true, want false", st)
		}
	}
	if !StatementSelect.IsReadOnly() {
		t.Error("SELECT should be read-only")
	}
	if StatementDDL.IsReadOnly() {
		t.Error("DDL should not be read-only")
	}
}
