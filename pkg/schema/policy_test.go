package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func testPolicy() *AccessPolicy {
	return &AccessPolicy{
		DefaultRole: "analyst",
		Roles: map[string]RolePolicy{
			"analyst": {
				DeniedTables:  []string{"payroll"},
				DeniedColumns: []string{"players.ssn"},
				MaskedColumns: []string{"email"},
			},
			"admin": {},
		},
		Users: map[string]string{"alice": "admin"},
	}
}

func TestPolicyFor_UserRoleMapping(t *testing.T) {
	p := testPolicy()

	admin := p.PolicyFor("alice")
	if !admin.TableAllowed("payroll") {
		t.Error("admin denied payroll")
	}

	analyst := p.PolicyFor("bob") // falls back to default role
	if analyst.TableAllowed("payroll") {
		t.Error("analyst allowed payroll")
	}
}

func TestPolicyFor_UnknownDefaultRoleIsPermissive(t *testing.T) {
	p := &AccessPolicy{DefaultRole: "ghost"}
	policy := p.PolicyFor("anyone")
	if !policy.TableAllowed("anything") {
		t.Error("empty policy must be permissive")
	}
}

func TestRolePolicy_AllowList(t *testing.T) {
	p := RolePolicy{AllowedTables: []string{"players", "orders"}}

	if !p.TableAllowed("Players") {
		t.Error("allow list match failed")
	}
	if p.TableAllowed("payroll") {
		t.Error("table outside allow list permitted")
	}
}

func TestRolePolicy_DenyBeatsAllow(t *testing.T) {
	p := RolePolicy{
		AllowedTables: []string{"players"},
		DeniedTables:  []string{"players"},
	}
	if p.TableAllowed("players") {
		t.Error("deny list must win over allow list")
	}
}

func TestRolePolicy_Columns(t *testing.T) {
	p := RolePolicy{
		DeniedColumns: []string{"players.ssn"},
		MaskedColumns: []string{"email"},
	}

	if !p.ColumnDenied("players", "SSN") {
		t.Error("qualified denied column not matched")
	}
	if p.ColumnDenied("orders", "ssn") {
		t.Error("deny applied to wrong table")
	}
	if !p.ColumnMasked("players", "email") {
		t.Error("bare masked column not matched")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	doc := `
default_role: analyst
roles:
  analyst:
    denied_tables: [payroll]
    masked_columns: [email]
users:
  alice: admin
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write policy doc: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() failed: %v", err)
	}
	if p.DefaultRole != "analyst" {
		t.Errorf("default role = %q", p.DefaultRole)
	}
	bobPolicy := p.PolicyFor("bob")
	if !bobPolicy.ColumnMasked("players", "email") {
		t.Error("masked column not loaded")
	}
}
