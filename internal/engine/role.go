package engine

import (
	"fmt"
	"strings"
)

// DefaultMaxSteps is the lower bound applied to roles that do not override
// their step budget.
const DefaultMaxSteps = 15

// Role describes one specialized agent: its name, responsibility text, the
// subset of tools it may use and its step budget. Roles are created once at
// process start and never mutated.
type Role struct {
	Name           string
	Responsibility string
	// AllowedTools restricts the tool schemas advertised to the model for
	// this role. Nil means unrestricted (full catalog).
	AllowedTools map[string]bool
	MaxSteps     int
	// Model overrides the invoker's default tier for this role. Empty uses
	// the default.
	Model string
}

// EffectiveMaxSteps returns the role's step budget, floored at
// DefaultMaxSteps.
func (r Role) EffectiveMaxSteps() int {
	if r.MaxSteps < DefaultMaxSteps {
		return DefaultMaxSteps
	}
	return r.MaxSteps
}

// Allows reports whether the role may use the named tool.
func (r Role) Allows(toolName string) bool {
	if r.AllowedTools == nil {
		return true
	}
	return r.AllowedTools[toolName]
}

// SystemInstruction renders the role descriptor into the system prompt for
// its agent loop.
func (r Role) SystemInstruction() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, one specialist in a team of agents collaboratively building a software project.\n\n", r.Name)
	b.WriteString(r.Responsibility)
	b.WriteString("\n\nUse the available tools to inspect and modify the project. ")
	b.WriteString("When your task is complete, reply with plain text (no tool call) summarizing the outcome.")
	return b.String()
}

// FilterSchemas returns the subset of schemas this role is allowed to see.
// Unrestricted roles get the full catalog back unchanged.
func (r Role) FilterSchemas(all []ToolSchema) []ToolSchema {
	if r.AllowedTools == nil {
		return all
	}
	out := make([]ToolSchema, 0, len(all))
	for _, s := range all {
		if r.AllowedTools[s.Name] {
			out = append(out, s)
		}
	}
	return out
}
