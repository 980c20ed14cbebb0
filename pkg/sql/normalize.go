// Package sql provides dialect-agnostic lexical analysis of SQL statements
// for the validation pipeline. Everything here is a pure function of the
// statement text; no I/O.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the text contains more than one SQL
	// statement. Only single statements enter the pipeline.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// Normalize trims the statement, strips one trailing semicolon, and rejects
// text that still contains a semicolon outside of string literals.
func Normalize(sqlText string) (string, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(sqlText)
	if semicolonOutsideLiterals(normalized) {
		return "", ErrMultipleStatements
	}
	return normalized, nil
}

// semicolonOutsideLiterals scans the statement with a small quote-aware
// state machine. The trailing semicolon has already been stripped, so any
// remaining one separates statements.
func semicolonOutsideLiterals(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBracket // T-SQL [identifier]
	)

	state := stateNormal
	prev := rune(0)

	for _, ch := range sqlText {
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '[':
				state = stateBracket
			}
		case stateSingleQuote:
			// Both backslash escape (\') and the SQL doubled quote ('')
			// keep us inside the literal: the doubled quote exits and
			// immediately re-enters on the next character.
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			}
		case stateBracket:
			if ch == ']' {
				state = stateNormal
			}
		}
		prev = ch
	}
	return false
}

func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")
	if strings.HasSuffix(sqlText, ";") {
		sqlText = strings.TrimRight(strings.TrimSuffix(sqlText, ";"), " \t\n\r")
	}
	return sqlText
}

// StringLiterals returns the contents of every single-quoted literal in the
// statement, with doubled quotes collapsed. Used by the injection check.
func StringLiterals(sqlText string) []string {
	var literals []string
	var current strings.Builder
	inLiteral := false

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if !inLiteral {
			if ch == '\'' {
				inLiteral = true
				current.Reset()
			}
			continue
		}
		if ch == '\'' {
			// Doubled quote is an escaped quote inside the literal.
			if i+1 < len(runes) && runes[i+1] == '\'' {
				current.WriteRune('\'')
				i++
				continue
			}
			inLiteral = false
			literals = append(literals, current.String())
			continue
		}
		current.WriteRune(ch)
	}
	return literals
}
