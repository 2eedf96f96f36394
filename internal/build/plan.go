package build

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/xeipuuv/gojsonschema"
)

// Plan is the architecture agent's output: what to build, with what, and
// how to run it.
type Plan struct {
	Stack      string  `json:"stack"`
	RunCommand string  `json:"run_command"`
	Phases     []Phase `json:"phases"`
}

// Phase groups file tasks that can be built side by side.
type Phase struct {
	Name  string     `json:"name"`
	Files []FileTask `json:"files"`
}

// FileTask is one file the engineer must realize.
type FileTask struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// PlanError means plan generation failed structurally even after retries.
type PlanError struct {
	Attempts int
	Reason   string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planning failed after %d attempt(s): %s", e.Attempts, e.Reason)
}

// planSchema rejects malformed plan payloads before any field is trusted.
const planSchema = `{
	"type": "object",
	"required": ["stack", "run_command", "phases"],
	"properties": {
		"stack": {"type": "string", "minLength": 1},
		"run_command": {"type": "string", "minLength": 1},
		"phases": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "files"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"files": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["path", "description"],
							"properties": {
								"path": {"type": "string", "minLength": 1},
								"description": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledPlanSchema = gojsonschema.NewStringLoader(planSchema)

// ParsePlan turns the architect's raw reply into a validated Plan. Model
// output is rarely clean JSON: surrounding prose and code fences are
// stripped, and almost-JSON (trailing commas, single quotes, unquoted
// keys) is repaired before validation.
func ParsePlan(raw string) (*Plan, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("reply contains no JSON object")
	}

	if !json.Valid([]byte(payload)) {
		repaired, err := jsonrepair.JSONRepair(payload)
		if err != nil {
			return nil, fmt.Errorf("plan is not valid JSON and could not be repaired: %w", err)
		}
		payload = repaired
	}

	res, err := gojsonschema.Validate(compiledPlanSchema, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}
	if !res.Valid() {
		var issues []string
		for _, issue := range res.Errors() {
			issues = append(issues, issue.String())
		}
		return nil, fmt.Errorf("plan violates expected shape: %s", strings.Join(issues, "; "))
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("plan decode failed: %w", err)
	}

	seen := make(map[string]bool)
	for _, phase := range plan.Phases {
		for _, task := range phase.Files {
			if seen[task.Path] {
				return nil, fmt.Errorf("file %s appears in more than one phase", task.Path)
			}
			seen[task.Path] = true
		}
	}
	return &plan, nil
}

// extractJSON pulls the first top-level {...} object out of a model reply,
// tolerating code fences and surrounding prose.
func extractJSON(raw string) string {
	s := raw
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unbalanced object: return the tail and let the repairer try.
	return s[start:]
}

// TaskCount is the total number of file tasks across all phases.
func (p *Plan) TaskCount() int {
	n := 0
	for _, phase := range p.Phases {
		n += len(phase.Files)
	}
	return n
}

// Encode serializes the plan for the state store.
func (p *Plan) Encode() json.RawMessage {
	blob, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return blob
}

// DecodePlan reads a stored plan back. A missing or damaged stored plan
// returns nil so the caller re-plans.
func DecodePlan(raw json.RawMessage) *Plan {
	if len(raw) == 0 {
		return nil
	}
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil
	}
	if len(plan.Phases) == 0 {
		return nil
	}
	return &plan
}
