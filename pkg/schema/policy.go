package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RolePolicy lists what a role may touch. Denied columns block a query
// outright; masked columns are tolerated but flagged as sensitive exposure
// when selected unmasked.
type RolePolicy struct {
	AllowedTables []string `yaml:"allowed_tables,omitempty" json:"allowed_tables,omitempty"`
	DeniedTables  []string `yaml:"denied_tables,omitempty" json:"denied_tables,omitempty"`
	DeniedColumns []string `yaml:"denied_columns,omitempty" json:"denied_columns,omitempty"`
	MaskedColumns []string `yaml:"masked_columns,omitempty" json:"masked_columns,omitempty"`
}

// TableAllowed applies the deny list first, then the allow list. An empty
// allow list means every non-denied table is permitted.
func (p *RolePolicy) TableAllowed(table string) bool {
	for _, t := range p.DeniedTables {
		if strings.EqualFold(t, table) {
			return false
		}
	}
	if len(p.AllowedTables) == 0 {
		return true
	}
	for _, t := range p.AllowedTables {
		if strings.EqualFold(t, table) {
			return true
		}
	}
	return false
}

// ColumnDenied reports whether a column (bare or table-qualified form) is
// on the role's deny list.
func (p *RolePolicy) ColumnDenied(table, column string) bool {
	return matchColumn(p.DeniedColumns, table, column)
}

// ColumnMasked reports whether a column must be masked for this role.
func (p *RolePolicy) ColumnMasked(table, column string) bool {
	return matchColumn(p.MaskedColumns, table, column)
}

func matchColumn(list []string, table, column string) bool {
	qualified := table + "." + column
	for _, c := range list {
		if strings.EqualFold(c, column) || strings.EqualFold(c, qualified) {
			return true
		}
	}
	return false
}

// AccessPolicy maps users to roles and roles to their table/column rights.
type AccessPolicy struct {
	DefaultRole string                `yaml:"default_role" json:"default_role"`
	Roles       map[string]RolePolicy `yaml:"roles" json:"roles"`
	Users       map[string]string     `yaml:"users,omitempty" json:"users,omitempty"`
}

// PolicyFor resolves the effective role policy for a user. Unknown users
// fall back to the default role; an unknown default yields a permissive
// empty policy.
func (a *AccessPolicy) PolicyFor(userID string) RolePolicy {
	role := a.DefaultRole
	if r, ok := a.Users[userID]; ok {
		role = r
	}
	if p, ok := a.Roles[role]; ok {
		return p
	}
	return RolePolicy{}
}

// LoadPolicy reads an access policy document from a YAML file.
func LoadPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var a AccessPolicy
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return &a, nil
}
