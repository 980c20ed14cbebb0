package sql

import (
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes one detected injection pattern.
type InjectionFinding struct {
	Fingerprint string // libinjection fingerprint, empty for lexical findings
	Fragment    string // the offending fragment
	Reason      string
}

var (
	// commentTailPattern matches inline comment markers that commonly
	// terminate an injected statement.
	commentTailPattern = regexp.MustCompile(`(--|#|/\*)`)

	// tautologyPattern matches the classic always-true predicates.
	tautologyPattern = regexp.MustCompile(`(?i)\b(?:or|and)\s+(?:(\d+)\s*=\s*(\d+)\b|'([^']*)'\s*=\s*'([^']*)')`)

	// systemUnionPattern matches UNION probes against catalog tables.
	systemUnionPattern = regexp.MustCompile(`(?i)\bunion\b.*\b(?:information_schema|sys\.|pg_catalog|sysobjects|syscolumns)`)
)

// CheckInjection scans a statement for SQL injection patterns. String
// literals are run through libinjection (which is designed for input
// fragments, not whole queries); the statement text itself is checked for
// lexical markers: comment tails, tautologies, and catalog-probing UNIONs.
func CheckInjection(sqlText string) []InjectionFinding {
	var findings []InjectionFinding

	for _, lit := range StringLiterals(sqlText) {
		if lit == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			findings = append(findings, InjectionFinding{
				Fingerprint: string(fingerprint),
				Fragment:    lit,
				Reason:      "string literal matches a SQL injection fingerprint",
			})
		}
	}

	if m := commentTailPattern.FindString(sqlText); m != "" {
		findings = append(findings, InjectionFinding{
			Fragment: m,
			Reason:   "inline comment marker can truncate the intended statement",
		})
	}

	if m := tautologyPattern.FindString(sqlText); m != "" {
		if isTautology(m) {
			findings = append(findings, InjectionFinding{
				Fragment: m,
				Reason:   "always-true predicate",
			})
		}
	}

	if m := systemUnionPattern.FindString(sqlText); m != "" {
		findings = append(findings, InjectionFinding{
			Fragment: m,
			Reason:   "UNION against system catalog tables",
		})
	}

	return findings
}

// isTautology confirms that both sides of a matched OR/AND predicate are
// identical constants, e.g. OR 1=1 or OR 'a'='a'.
func isTautology(fragment string) bool {
	if sub := tautologyPattern.FindStringSubmatch(fragment); sub != nil {
		if sub[1] != "" {
			return sub[1] == sub[2]
		}
		return sub[3] == sub[4]
	}
	return false
}

// privilegePattern matches statements and clauses that alter privileges or
// impersonate another principal.
var privilegePattern = regexp.MustCompile(`(?i)\b(grant|revoke|execute\s+as|xp_cmdshell|sp_configure)\b`)

// CheckPrivilegeMisuse scans for privilege-altering or impersonation
// constructs that generated analytics SQL must never contain.
func CheckPrivilegeMisuse(sqlText string) []string {
	var hits []string
	for _, m := range privilegePattern.FindAllString(sqlText, -1) {
		hits = append(hits, strings.ToUpper(strings.Join(strings.Fields(m), " ")))
	}
	return hits
}
