package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func testGlossary() *Glossary {
	return &Glossary{
		Terms: []Term{
			{
				Name:     "player",
				Synonyms: []string{"customer", "user"},
				Tables:   []string{"players"},
			},
			{
				Name:        "deposits",
				Tables:      []string{"transactions"},
				Columns:     []string{"deposit_amount"},
				Aggregation: "SUM",
			},
			{
				Name:   "active player",
				Tables: []string{"players"},
			},
		},
	}
}

func TestMatchTerms_SingularInsensitive(t *testing.T) {
	g := testGlossary()

	matched := g.MatchTerms("How many players signed up last week?")
	if len(matched) != 1 || matched[0].Name != "player" {
		t.Fatalf("matched = %v, want [player]", termNames(matched))
	}
}

func TestMatchTerms_Synonyms(t *testing.T) {
	g := testGlossary()

	matched := g.MatchTerms("show me our top customers")
	if len(matched) != 1 || matched[0].Name != "player" {
		t.Fatalf("matched = %v, want [player]", termNames(matched))
	}
}

func TestMatchTerms_MultiWord(t *testing.T) {
	g := testGlossary()

	matched := g.MatchTerms("count active players by country")
	found := false
	for _, m := range matched {
		if m.Name == "active player" {
			found = true
		}
	}
	if !found {
		t.Errorf("multi-word term not matched: %v", termNames(matched))
	}
}

func TestMatchTerms_NoMatch(t *testing.T) {
	g := testGlossary()

	if matched := g.MatchTerms("total revenue by region"); len(matched) != 0 {
		t.Errorf("matched = %v, want none", termNames(matched))
	}
}

func TestTerm_CoveredBy(t *testing.T) {
	term := Term{Name: "deposits", Tables: []string{"transactions"}, Columns: []string{"deposit_amount"}}

	byTable := map[string]bool{"transactions": true}
	if !term.CoveredBy(byTable, map[string]bool{}) {
		t.Error("table binding not recognized")
	}

	byColumn := map[string]bool{"deposit_amount": true}
	if !term.CoveredBy(map[string]bool{}, byColumn) {
		t.Error("column binding not recognized")
	}

	if term.CoveredBy(map[string]bool{"players": true}, map[string]bool{"id": true}) {
		t.Error("unrelated objects reported as coverage")
	}

	unbound := Term{Name: "kpi"}
	if !unbound.CoveredBy(map[string]bool{}, map[string]bool{}) {
		t.Error("unbound term must not be reported as uncovered")
	}
}

func TestLoadGlossary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.yaml")
	doc := `
terms:
  - name: player
    synonyms: [customer]
    tables: [players]
  - name: deposits
    columns: [deposit_amount]
    aggregation: SUM
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write glossary doc: %v", err)
	}

	g, err := LoadGlossary(path)
	if err != nil {
		t.Fatalf("LoadGlossary() failed: %v", err)
	}
	if len(g.Terms) != 2 {
		t.Fatalf("terms = %d, want 2", len(g.Terms))
	}
	if g.Terms[1].Aggregation != "SUM" {
		t.Errorf("aggregation = %q, want SUM", g.Terms[1].Aggregation)
	}
}

func termNames(terms []Term) []string {
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, t.Name)
	}
	return names
}
