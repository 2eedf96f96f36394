package roles

import (
	"strings"
	"testing"
)

func TestGetKnownRoles(t *testing.T) {
	for _, name := range []string{Requirements, Architect, Judge, Engineer, Auditor, TestWriter, Debugger} {
		r, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if r.Name != name {
			t.Errorf("role %s has Name %q", name, r.Name)
		}
		if strings.TrimSpace(r.Responsibility) == "" {
			t.Errorf("role %s has no responsibility prompt", name)
		}
	}
}

func TestGetUnknownRole(t *testing.T) {
	if _, err := Get("intern"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestReadOnlyRolesCannotWrite(t *testing.T) {
	for _, name := range []string{Requirements, Architect, Judge, Auditor} {
		r, _ := Get(name)
		for _, tool := range []string{"write_file", "replace_in_file"} {
			if r.Allows(tool) {
				t.Errorf("role %s must not be allowed %s", name, tool)
			}
		}
		if !r.Allows("read_file") {
			t.Errorf("role %s should be allowed read_file", name)
		}
	}
}

func TestAuditorCanRunCommands(t *testing.T) {
	r, _ := Get(Auditor)
	if !r.Allows("run_command") {
		t.Error("auditor needs run_command for cheap checks")
	}
	j, _ := Get(Judge)
	if j.Allows("run_command") {
		t.Error("judge decides from reading, not running")
	}
}

func TestEngineerUnrestricted(t *testing.T) {
	r, _ := Get(Engineer)
	if r.AllowedTools != nil {
		t.Error("engineer should see the full catalog")
	}
}

func TestWithModel(t *testing.T) {
	r, _ := Get(Engineer)
	if got := WithModel(r, "claude-opus-4-20250514"); got.Model != "claude-opus-4-20250514" {
		t.Errorf("override not applied: %q", got.Model)
	}
	if got := WithModel(r, ""); got.Model != r.Model {
		t.Error("empty override must not change the role")
	}
}
