package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"
)

// Term is one entry of the business glossary: a domain concept with its
// synonyms and the schema objects that realize it.
type Term struct {
	Name        string   `yaml:"name" json:"name"`
	Synonyms    []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Tables      []string `yaml:"tables,omitempty" json:"tables,omitempty"`
	Columns     []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Aggregation string   `yaml:"aggregation,omitempty" json:"aggregation,omitempty"`
}

// Glossary maps business language to schema objects. The semantic stage
// uses it to judge whether generated SQL touches the concepts a question
// names.
type Glossary struct {
	Terms []Term `yaml:"terms" json:"terms"`
}

// LoadGlossary reads a glossary document from a YAML file.
func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse glossary file: %w", err)
	}
	return &g, nil
}

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// tokenize splits free text into lowercased singular words so "players"
// matches a term named "player".
func tokenize(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, inflection.Singular(w))
	}
	return tokens
}

// matchesToken reports whether a term name or synonym matches a token.
// Multi-word names match when all their words appear in the token set.
func matchTokens(name string, tokenSet map[string]bool) bool {
	for _, w := range tokenize(name) {
		if !tokenSet[w] {
			return false
		}
	}
	return true
}

// MatchTerms returns the glossary terms referenced by the given question
// text. Matching is singular-insensitive and covers synonyms.
func (g *Glossary) MatchTerms(question string) []Term {
	tokenSet := make(map[string]bool)
	for _, t := range tokenize(question) {
		tokenSet[t] = true
	}

	var matched []Term
	for _, term := range g.Terms {
		if matchTokens(term.Name, tokenSet) {
			matched = append(matched, term)
			continue
		}
		for _, syn := range term.Synonyms {
			if matchTokens(syn, tokenSet) {
				matched = append(matched, term)
				break
			}
		}
	}
	return matched
}

// CoveredBy reports whether the term's schema objects appear in the given
// table and column name sets (both lowercased).
func (t *Term) CoveredBy(tables, columns map[string]bool) bool {
	for _, table := range t.Tables {
		if tables[strings.ToLower(table)] {
			return true
		}
	}
	for _, col := range t.Columns {
		if columns[strings.ToLower(col)] {
			return true
		}
	}
	// A term with no bindings cannot be contradicted by the SQL.
	return len(t.Tables) == 0 && len(t.Columns) == 0
}
