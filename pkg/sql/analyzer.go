package sql

import (
	"regexp"
	"strings"
)

// TableRef is a table referenced in FROM or JOIN.
type TableRef struct {
	Name  string // unqualified, brackets stripped
	Alias string
}

// ColumnRef is a column reference, optionally qualified by a table name or
// alias.
type ColumnRef struct {
	Qualifier string
	Name      string
}

// String renders the reference the way it appeared.
func (c ColumnRef) String() string {
	if c.Qualifier != "" {
		return c.Qualifier + "." + c.Name
	}
	return c.Name
}

// JoinRef is one JOIN (explicit or comma-separated) against the preceding
// tables.
type JoinRef struct {
	Table        TableRef
	JoinType     string // INNER, LEFT, RIGHT, FULL, CROSS, or IMPLICIT
	Condition    string // raw ON text, empty when absent
	HasCondition bool
}

// Aggregate is one aggregate function call from the SELECT list.
type Aggregate struct {
	Func string // upper-case function name
	Arg  string // raw argument text
}

// Analysis is the lexical decomposition of a single statement. It is a
// best-effort extraction over well-formed generated SQL, not a full parse:
// validate statement shape first (Normalize, DetectStatementType).
type Analysis struct {
	Statement        StatementType
	SelectStar       bool
	Tables           []TableRef
	Joins            []JoinRef
	SelectColumns    []ColumnRef
	WhereColumns     []ColumnRef
	GroupByColumns   []ColumnRef
	Aggregates       []Aggregate
	HasWhere         bool
	HasGroupBy       bool
	HasHaving        bool
	AggregateInWhere bool
}

// TableNames returns the distinct referenced table names in order of first
// appearance.
func (a *Analysis) TableNames() []string {
	seen := make(map[string]bool, len(a.Tables))
	var names []string
	for _, t := range a.Tables {
		key := strings.ToLower(t.Name)
		if !seen[key] {
			seen[key] = true
			names = append(names, t.Name)
		}
	}
	return names
}

// ResolveQualifier maps an alias or table name back to the table it refers
// to. Returns the empty string when the qualifier is unknown.
func (a *Analysis) ResolveQualifier(qualifier string) string {
	q := strings.ToLower(qualifier)
	for _, t := range a.Tables {
		if strings.ToLower(t.Alias) == q || strings.ToLower(t.Name) == q {
			return t.Name
		}
	}
	return ""
}

// HasAggregates reports whether the SELECT list contains aggregate calls.
func (a *Analysis) HasAggregates() bool {
	return len(a.Aggregates) > 0
}

var aggregatePattern = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|stdev|stddev|var|variance)\s*\(([^)]*)\)`)

var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "in": true, "like": true, "between": true, "is": true,
	"null": true, "as": true, "on": true, "join": true, "inner": true,
	"left": true, "right": true, "full": true, "outer": true, "cross": true,
	"group": true, "order": true, "by": true, "having": true, "asc": true,
	"desc": true, "distinct": true, "top": true, "limit": true, "offset": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"union": true, "all": true, "exists": true, "with": true, "cast": true,
}

// Analyze lexically decomposes a normalized single statement.
func Analyze(sqlText string) *Analysis {
	a := &Analysis{Statement: DetectStatementType(sqlText)}

	clauses := splitClauses(sqlText)

	if sel, ok := clauses["select"]; ok {
		a.parseSelectList(sel)
	}
	if from, ok := clauses["from"]; ok {
		a.parseFromClause(from)
	}
	if where, ok := clauses["where"]; ok {
		a.HasWhere = true
		a.WhereColumns = extractColumnRefs(where)
		a.AggregateInWhere = aggregatePattern.MatchString(where)
		a.attachImplicitJoinConditions(where)
	}
	if groupBy, ok := clauses["group by"]; ok {
		a.HasGroupBy = true
		a.GroupByColumns = extractColumnRefs(groupBy)
	}
	if _, ok := clauses["having"]; ok {
		a.HasHaving = true
	}

	return a
}

// clauseKeywords are matched at paren depth zero, longest first so GROUP BY
// wins over a bare identifier "group".
var clauseKeywords = []string{"select", "from", "where", "group by", "having", "order by"}

// splitClauses slices the statement into its top-level clauses. Clause text
// excludes the keyword itself.
func splitClauses(sqlText string) map[string]string {
	lower := strings.ToLower(sqlText)
	type mark struct {
		keyword string
		start   int // index after keyword
		pos     int // index of keyword
	}
	var marks []mark

	depth := 0
	inLiteral := false
	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		if inLiteral {
			if ch == '\'' {
				inLiteral = false
			}
			continue
		}
		switch ch {
		case '\'':
			inLiteral = true
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, kw := range clauseKeywords {
			if !strings.HasPrefix(lower[i:], kw) {
				continue
			}
			if i > 0 && isWordChar(lower[i-1]) {
				continue
			}
			end := i + len(kw)
			if end < len(lower) && isWordChar(lower[end]) {
				continue
			}
			marks = append(marks, mark{keyword: kw, start: end, pos: i})
			i = end - 1
			break
		}
	}

	clauses := make(map[string]string, len(marks))
	for i, m := range marks {
		end := len(sqlText)
		if i+1 < len(marks) {
			end = marks[i+1].pos
		}
		// First occurrence wins; subqueries never reach depth zero.
		if _, exists := clauses[m.keyword]; !exists {
			clauses[m.keyword] = strings.TrimSpace(sqlText[m.start:end])
		}
	}
	return clauses
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// parseSelectList extracts columns and aggregates from the SELECT list.
func (a *Analysis) parseSelectList(list string) {
	list = strings.TrimSpace(list)
	lower := strings.ToLower(list)

	// Strip DISTINCT / TOP n prefixes.
	if strings.HasPrefix(lower, "distinct") {
		list = strings.TrimSpace(list[len("distinct"):])
		lower = strings.ToLower(list)
	}
	if strings.HasPrefix(lower, "top") {
		rest := strings.TrimSpace(list[3:])
		if fields := strings.Fields(rest); len(fields) > 0 {
			list = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		}
	}

	for _, m := range aggregatePattern.FindAllStringSubmatch(list, -1) {
		a.Aggregates = append(a.Aggregates, Aggregate{
			Func: strings.ToUpper(m[1]),
			Arg:  strings.TrimSpace(m[2]),
		})
	}

	for _, expr := range splitTopLevel(list, ',') {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if expr == "*" || strings.HasSuffix(expr, ".*") {
			a.SelectStar = true
			continue
		}
		if aggregatePattern.MatchString(expr) {
			continue // aggregate, not a plain column
		}
		if ref, ok := parseColumnExpr(expr); ok {
			a.SelectColumns = append(a.SelectColumns, ref)
		}
	}
}

// parseColumnExpr extracts the underlying column reference from a SELECT
// expression, ignoring the alias: "u.name AS customer" yields u.name.
func parseColumnExpr(expr string) (ColumnRef, bool) {
	lower := strings.ToLower(expr)
	if idx := strings.Index(lower, " as "); idx >= 0 {
		expr = strings.TrimSpace(expr[:idx])
	}
	refs := extractColumnRefs(expr)
	if len(refs) == 0 {
		return ColumnRef{}, false
	}
	return refs[0], true
}

var columnRefPattern = regexp.MustCompile(`(?:([A-Za-z_]\w*)\.)?([A-Za-z_]\w*)`)

// extractColumnRefs pulls column references out of an expression, skipping
// keywords, function names, and string literals.
func extractColumnRefs(expr string) []ColumnRef {
	// Blank out string literals so their contents are not mistaken for
	// identifiers.
	var masked strings.Builder
	inLiteral := false
	for _, ch := range expr {
		switch {
		case inLiteral && ch == '\'':
			inLiteral = false
			masked.WriteRune(' ')
		case inLiteral:
			masked.WriteRune(' ')
		case ch == '\'':
			inLiteral = true
			masked.WriteRune(' ')
		case ch == '[' || ch == ']':
			// strip T-SQL identifier brackets
		default:
			masked.WriteRune(ch)
		}
	}
	text := masked.String()

	var refs []ColumnRef
	seen := make(map[string]bool)
	for _, loc := range columnRefPattern.FindAllStringSubmatchIndex(text, -1) {
		qualifier := ""
		if loc[2] >= 0 {
			qualifier = text[loc[2]:loc[3]]
		}
		name := text[loc[4]:loc[5]]

		// A name immediately followed by '(' is a function call.
		end := loc[5]
		rest := strings.TrimLeft(text[end:], " \t")
		if strings.HasPrefix(rest, "(") {
			continue
		}
		if qualifier == "" && sqlKeywords[strings.ToLower(name)] {
			continue
		}
		if qualifier != "" && sqlKeywords[strings.ToLower(qualifier)] {
			continue
		}
		// Bare numbers are matched by \w but filtered by the regex's
		// leading [A-Za-z_]; nothing to do here.
		key := strings.ToLower(qualifier + "." + name)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ColumnRef{Qualifier: qualifier, Name: name})
	}
	return refs
}

var joinPattern = regexp.MustCompile(`(?i)\b((?:inner|left|right|full|cross)(?:\s+outer)?\s+join|join)\b`)

// parseFromClause extracts the base tables and joins.
func (a *Analysis) parseFromClause(from string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return
	}

	// Locate explicit JOIN keywords at top level.
	locs := joinPattern.FindAllStringIndex(from, -1)

	base := from
	if len(locs) > 0 {
		base = from[:locs[0][0]]
	}

	// Comma-separated base tables are implicit cross joins.
	baseTables := splitTopLevel(base, ',')
	for i, seg := range baseTables {
		ref, ok := parseTableRef(seg)
		if !ok {
			continue
		}
		a.Tables = append(a.Tables, ref)
		if i > 0 {
			a.Joins = append(a.Joins, JoinRef{Table: ref, JoinType: "IMPLICIT"})
		}
	}

	for i, loc := range locs {
		end := len(from)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		joinType := normalizeJoinType(from[loc[0]:loc[1]])
		segment := from[loc[1]:end]

		condition := ""
		tablePart := segment
		lowerSeg := strings.ToLower(segment)
		if onIdx := strings.Index(lowerSeg, " on "); onIdx >= 0 {
			condition = strings.TrimSpace(segment[onIdx+4:])
			tablePart = segment[:onIdx]
		}

		ref, ok := parseTableRef(tablePart)
		if !ok {
			continue
		}
		a.Tables = append(a.Tables, ref)
		a.Joins = append(a.Joins, JoinRef{
			Table:        ref,
			JoinType:     joinType,
			Condition:    condition,
			HasCondition: condition != "",
		})
	}
}

func normalizeJoinType(raw string) string {
	upper := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	upper = strings.TrimSuffix(upper, " JOIN")
	upper = strings.TrimSuffix(upper, " OUTER")
	if upper == "JOIN" || upper == "" {
		return "INNER"
	}
	return upper
}

// parseTableRef parses "schema.table alias" / "table AS alias" forms.
func parseTableRef(segment string) (TableRef, bool) {
	fields := strings.Fields(strings.TrimSpace(segment))
	if len(fields) == 0 {
		return TableRef{}, false
	}

	name := strings.Trim(fields[0], "[]")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" || strings.HasPrefix(name, "(") {
		return TableRef{}, false // derived table; out of lexical reach
	}

	ref := TableRef{Name: name}
	if len(fields) >= 2 {
		alias := fields[1]
		if strings.EqualFold(alias, "as") && len(fields) >= 3 {
			alias = fields[2]
		}
		alias = strings.Trim(alias, "[]")
		if !sqlKeywords[strings.ToLower(alias)] {
			ref.Alias = alias
		}
	}
	return ref, true
}

var equalityPattern = regexp.MustCompile(`([A-Za-z_]\w*)\.([A-Za-z_]\w*)\s*=\s*([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)

// attachImplicitJoinConditions marks comma-joined tables as conditioned
// when the WHERE clause carries an equality between two different tables.
func (a *Analysis) attachImplicitJoinConditions(where string) {
	for i := range a.Joins {
		if a.Joins[i].JoinType != "IMPLICIT" || a.Joins[i].HasCondition {
			continue
		}
		joined := strings.ToLower(a.Joins[i].Table.Name)
		joinedAlias := strings.ToLower(a.Joins[i].Table.Alias)
		for _, m := range equalityPattern.FindAllStringSubmatch(where, -1) {
			left, right := strings.ToLower(m[1]), strings.ToLower(m[3])
			if left == right {
				continue
			}
			if left == joined || left == joinedAlias || right == joined || right == joinedAlias {
				a.Joins[i].HasCondition = true
				a.Joins[i].Condition = m[0]
				break
			}
		}
	}
}

// splitTopLevel splits on a separator, respecting parentheses (adapted
// from the SELECT-list splitter used for generated-query parsing).
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case sep:
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
