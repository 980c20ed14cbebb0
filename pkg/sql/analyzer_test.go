package sql

import (
	"testing"
)

func TestAnalyze_SimpleSelect(t *testing.T) {
	a := Analyze("SELECT id, name FROM users WHERE active = 1")

	if a.Statement != StatementSelect {
		t.Fatalf("statement = %v, want SELECT", a.Statement)
	}
	if len(a.Tables) != 1 || a.Tables[0].Name != "users" {
		t.Fatalf("tables = %v, want [users]", a.Tables)
	}
	if len(a.SelectColumns) != 2 {
		t.Fatalf("select columns = %v, want 2", a.SelectColumns)
	}
	if a.SelectColumns[0].Name != "id" || a.SelectColumns[1].Name != "name" {
		t.Errorf("select columns = %v", a.SelectColumns)
	}
	if !a.HasWhere {
		t.Error("HasWhere = false")
	}
	if len(a.WhereColumns) != 1 || a.WhereColumns[0].Name != "active" {
		t.Errorf("where columns = %v, want [active]", a.WhereColumns)
	}
	if a.SelectStar {
		t.Error("SelectStar = true for explicit column list")
	}
}

func TestAnalyze_SelectStar(t *testing.T) {
	a := Analyze("SELECT * FROM tbl_Daily_actions WHERE Date = GETDATE()")

	if !a.SelectStar {
		t.Error("SelectStar = false")
	}
	if len(a.Tables) != 1 || a.Tables[0].Name != "tbl_Daily_actions" {
		t.Errorf("tables = %v", a.Tables)
	}
	// GETDATE() is a function call, not a column.
	for _, c := range a.WhereColumns {
		if c.Name == "GETDATE" {
			t.Errorf("function call extracted as column: %v", a.WhereColumns)
		}
	}
	if len(a.WhereColumns) != 1 || a.WhereColumns[0].Name != "Date" {
		t.Errorf("where columns = %v, want [Date]", a.WhereColumns)
	}
}

func TestAnalyze_ExplicitJoin(t *testing.T) {
	a := Analyze("SELECT u.name, o.total FROM users u INNER JOIN orders o ON u.id = o.user_id WHERE o.total > 100")

	if len(a.Tables) != 2 {
		t.Fatalf("tables = %v, want 2", a.Tables)
	}
	if a.Tables[0].Name != "users" || a.Tables[0].Alias != "u" {
		t.Errorf("base table = %+v", a.Tables[0])
	}
	if a.Tables[1].Name != "orders" || a.Tables[1].Alias != "o" {
		t.Errorf("joined table = %+v", a.Tables[1])
	}
	if len(a.Joins) != 1 {
		t.Fatalf("joins = %v, want 1", a.Joins)
	}
	if !a.Joins[0].HasCondition {
		t.Error("join condition not detected")
	}
	if a.Joins[0].JoinType != "INNER" {
		t.Errorf("join type = %q, want INNER", a.Joins[0].JoinType)
	}
	if got := a.ResolveQualifier("o"); got != "orders" {
		t.Errorf("ResolveQualifier(o) = %q, want orders", got)
	}
}

func TestAnalyze_JoinWithoutCondition(t *testing.T) {
	a := Analyze("SELECT u.name, o.total FROM users u JOIN orders o WHERE o.total > 100")

	if len(a.Joins) != 1 {
		t.Fatalf("joins = %v, want 1", a.Joins)
	}
	if a.Joins[0].HasCondition {
		t.Error("missing ON condition reported as present")
	}
}

func TestAnalyze_ImplicitJoin(t *testing.T) {
	withCondition := Analyze("SELECT * FROM users u, orders o WHERE u.id = o.user_id")
	if len(withCondition.Joins) != 1 {
		t.Fatalf("joins = %v, want 1", withCondition.Joins)
	}
	if !withCondition.Joins[0].HasCondition {
		t.Error("WHERE equality between tables not recognized as join condition")
	}

	withoutCondition := Analyze("SELECT * FROM users u, orders o WHERE o.total > 100")
	if len(withoutCondition.Joins) != 1 {
		t.Fatalf("joins = %v, want 1", withoutCondition.Joins)
	}
	if withoutCondition.Joins[0].HasCondition {
		t.Error("cartesian product reported as conditioned join")
	}
}

func TestAnalyze_Aggregates(t *testing.T) {
	a := Analyze("SELECT country, COUNT(*) AS players, SUM(deposits) AS total FROM players GROUP BY country HAVING SUM(deposits) > 0")

	if len(a.Aggregates) < 2 {
		t.Fatalf("aggregates = %v, want COUNT and SUM", a.Aggregates)
	}
	if a.Aggregates[0].Func != "COUNT" {
		t.Errorf("first aggregate = %+v", a.Aggregates[0])
	}
	if !a.HasGroupBy || !a.HasHaving {
		t.Errorf("HasGroupBy=%v HasHaving=%v, want true/true", a.HasGroupBy, a.HasHaving)
	}
	if len(a.GroupByColumns) != 1 || a.GroupByColumns[0].Name != "country" {
		t.Errorf("group by columns = %v", a.GroupByColumns)
	}
	// country is the only plain select column; aggregates are excluded.
	if len(a.SelectColumns) != 1 || a.SelectColumns[0].Name != "country" {
		t.Errorf("select columns = %v, want [country]", a.SelectColumns)
	}
}

func TestAnalyze_AggregateInWhere(t *testing.T) {
	a := Analyze("SELECT id FROM orders WHERE SUM(total) > 100")
	if !a.AggregateInWhere {
		t.Error("aggregate in WHERE not detected")
	}
}

func TestAnalyze_TopAndDistinct(t *testing.T) {
	a := Analyze("SELECT TOP 10 name FROM players")
	if len(a.SelectColumns) != 1 || a.SelectColumns[0].Name != "name" {
		t.Errorf("select columns = %v, want [name]", a.SelectColumns)
	}

	b := Analyze("SELECT DISTINCT country FROM players")
	if len(b.SelectColumns) != 1 || b.SelectColumns[0].Name != "country" {
		t.Errorf("select columns = %v, want [country]", b.SelectColumns)
	}
}

func TestAnalyze_TableNamesDeduplicated(t *testing.T) {
	a := Analyze("SELECT a.x FROM t1 a JOIN t1 b ON a.id = b.parent_id")
	names := a.TableNames()
	if len(names) != 1 || names[0] != "t1" {
		t.Errorf("TableNames() = %v, want [t1]", names)
	}
}

func TestAnalyze_SubqueryColumnsStayLocal(t *testing.T) {
	a := Analyze("SELECT name FROM users WHERE id IN (SELECT user_id FROM orders GROUP BY user_id)")
	// The subquery's GROUP BY is below depth zero and must not leak.
	if a.HasGroupBy {
		t.Error("subquery GROUP BY leaked to top level")
	}
	if len(a.Tables) != 1 || a.Tables[0].Name != "users" {
		t.Errorf("tables = %v, want [users]", a.Tables)
	}
}
