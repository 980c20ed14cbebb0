// Package schema provides the metadata model consumed by the validation
// pipeline: database snapshots, the business glossary, and access policy.
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column describes one column of a discovered or declared table.
type Column struct {
	Name        string `yaml:"name" json:"name"`
	DataType    string `yaml:"data_type" json:"data_type"`
	IsNullable  bool   `yaml:"nullable" json:"nullable"`
	IsSensitive bool   `yaml:"sensitive" json:"sensitive"`
}

// ForeignKey declares a relationship used to judge join consistency.
type ForeignKey struct {
	Columns    []string `yaml:"columns" json:"columns"`
	RefTable   string   `yaml:"ref_table" json:"ref_table"`
	RefColumns []string `yaml:"ref_columns" json:"ref_columns"`
}

// Table describes one table with its columns and the business filters a
// query against it must carry.
type Table struct {
	Name            string       `yaml:"name" json:"name"`
	Schema          string       `yaml:"schema,omitempty" json:"schema,omitempty"`
	Columns         []Column     `yaml:"columns" json:"columns"`
	PrimaryKey      []string     `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	ForeignKeys     []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	RequiredFilters []string     `yaml:"required_filters,omitempty" json:"required_filters,omitempty"`
	RowCount        int64        `yaml:"row_count,omitempty" json:"row_count,omitempty"`
}

// Column finds a column by name, case-insensitively. SQL identifiers in the
// wild rarely match the catalog's casing.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasForeignKeyTo reports whether this table declares a foreign key to the
// named table.
func (t *Table) HasForeignKeyTo(table string) bool {
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.RefTable, table) {
			return true
		}
	}
	return false
}

// Snapshot is an immutable point-in-time view of the target database's
// structure. The orchestrator resolves one snapshot per request and every
// stage reads the same copy.
type Snapshot struct {
	Tables []Table `yaml:"tables" json:"tables"`

	byName map[string]*Table
}

// NewSnapshot builds a snapshot with its lookup index.
func NewSnapshot(tables []Table) *Snapshot {
	s := &Snapshot{Tables: tables}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.byName = make(map[string]*Table, len(s.Tables))
	for i := range s.Tables {
		s.byName[strings.ToLower(s.Tables[i].Name)] = &s.Tables[i]
		if s.Tables[i].Schema != "" {
			qualified := strings.ToLower(s.Tables[i].Schema + "." + s.Tables[i].Name)
			s.byName[qualified] = &s.Tables[i]
		}
	}
}

// Table finds a table by bare or schema-qualified name, case-insensitively.
func (s *Snapshot) Table(name string) *Table {
	if s.byName == nil {
		s.reindex()
	}
	return s.byName[strings.ToLower(name)]
}

// TableNames returns the bare names of all tables in the snapshot.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for i := range s.Tables {
		names = append(names, s.Tables[i].Name)
	}
	return names
}

// LoadSnapshot reads a snapshot document from a YAML file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	s.reindex()
	return &s, nil
}
