// Package roles defines the specialist agents of the build team. Each role
// is an engine.Role with a responsibility prompt, a tool allowance and a
// step budget. The descriptors are fixed at compile time; per-role model
// overrides come from the environment at startup.
package roles

import (
	"fmt"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
)

const (
	Requirements = "requirements"
	Architect    = "architect"
	Judge        = "judge"
	Engineer     = "engineer"
	Auditor      = "auditor"
	TestWriter   = "test-writer"
	Debugger     = "debugger"
)

// readOnly is the tool allowance for roles that inspect but never modify.
func readOnly(extra ...string) map[string]bool {
	allowed := map[string]bool{
		"read_file":        true,
		"list_files":       true,
		"search_files":     true,
		"search_symbols":   true,
		"get_file_context": true,
		"post_message":     true,
	}
	for _, name := range extra {
		allowed[name] = true
	}
	return allowed
}

var catalog = map[string]engine.Role{
	Requirements: {
		Name:           Requirements,
		Responsibility: requirementsPrompt,
		AllowedTools:   readOnly("fetch_url"),
		MaxSteps:       20,
	},
	Architect: {
		Name:           Architect,
		Responsibility: architectPrompt,
		AllowedTools:   readOnly("fetch_url"),
		MaxSteps:       25,
	},
	Judge: {
		Name:           Judge,
		Responsibility: judgePrompt,
		AllowedTools:   readOnly(),
		MaxSteps:       15,
	},
	Engineer: {
		Name:           Engineer,
		Responsibility: engineerPrompt,
		MaxSteps:       40, // unrestricted tools
	},
	Auditor: {
		Name:           Auditor,
		Responsibility: auditorPrompt,
		AllowedTools:   readOnly("run_command"),
		MaxSteps:       20,
	},
	TestWriter: {
		Name:           TestWriter,
		Responsibility: testWriterPrompt,
		MaxSteps:       35,
	},
	Debugger: {
		Name:           Debugger,
		Responsibility: debuggerPrompt,
		MaxSteps:       60,
	},
}

// Get returns the named role descriptor.
func Get(name string) (engine.Role, error) {
	r, ok := catalog[name]
	if !ok {
		return engine.Role{}, fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// WithModel returns the role with a model override applied. An empty model
// leaves the descriptor unchanged.
func WithModel(r engine.Role, model string) engine.Role {
	if model != "" {
		r.Model = model
	}
	return r
}

// Names lists every registered role, for diagnostics.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}
