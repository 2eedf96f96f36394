// Package build drives the multi-agent construction of a project: a fixed
// phase machine that runs specialist agents in order, persists progress
// after every file, and resumes a half-finished build where it stopped.
package build

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/roles"
	"github.com/ChamsBouzaiene/foreman/internal/state"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

// agentRetries bounds re-runs of the requirements and architecture agents.
// Each retry carries the prior failure as a corrective hint.
const agentRetries = 3

// maxClarifyQuestions bounds the clarification sub-step.
const maxClarifyQuestions = 3

// Agents abstracts running one role-bound agent to completion. Production
// wiring routes through engine.Loop; tests script the replies.
type Agents interface {
	Run(ctx context.Context, roleName string, task engine.Task) (string, error)
}

// Prompter asks the operator a question and returns their answer. A nil
// Prompter skips clarification entirely.
type Prompter interface {
	Ask(question string) string
}

// Controller is the build phase machine.
type Controller struct {
	root     string
	store    *state.Store
	index    *symbols.Index
	agents   Agents
	prompter Prompter
}

// NewController assembles the phase machine. index may be nil, which
// disables dependency invalidation.
func NewController(root string, store *state.Store, index *symbols.Index, agents Agents, prompter Prompter) *Controller {
	return &Controller{
		root:     root,
		store:    store,
		index:    index,
		agents:   agents,
		prompter: prompter,
	}
}

// Run executes the build: REQUIREMENTS, ARCHITECTURE, TEST_STRATEGY,
// CONSTRUCTION, VERIFICATION, in that order, each gated on persisted state
// when resuming.
func (c *Controller) Run(ctx context.Context, instruction string, resume bool) error {
	project := c.store.Load()
	if !resume || project.Goals == "" {
		if err := c.store.SetGoals(instruction); err != nil {
			return fmt.Errorf("cannot persist goals: %w", err)
		}
	}

	requirements, err := c.runRequirements(ctx, instruction, resume)
	if err != nil {
		return err
	}

	plan, err := c.runArchitecture(ctx, instruction, requirements, resume)
	if err != nil {
		return err
	}

	c.runTestStrategy(ctx, plan)

	if err := c.runConstruction(ctx, plan, resume); err != nil {
		return err
	}

	if err := c.runVerification(ctx, plan); err != nil {
		return err
	}

	c.store.RecordEvent("complete", "build finished")
	log.Printf("✅ build complete (%d files planned)", plan.TaskCount())
	return nil
}

// runRequirements reuses stored requirements on resume unless the operator
// asked for a recheck; otherwise it clarifies the instruction and runs the
// requirements agent.
func (c *Controller) runRequirements(ctx context.Context, instruction string, resume bool) (string, error) {
	if resume && !wantsRecheck(instruction) {
		if stored := c.store.Snapshot().Requirements; stored != "" {
			log.Printf("📋 reusing stored requirements")
			return stored, nil
		}
	}

	instruction = c.clarify(ctx, instruction)

	log.Printf("📋 gathering requirements")
	result, err := c.runWithHint(ctx, roles.Requirements, engine.Task{
		Instruction: "Produce the requirements document for this project goal:\n\n" + instruction,
	})
	if err != nil {
		return "", fmt.Errorf("requirements phase failed: %w", err)
	}
	if err := c.store.SetRequirements(result); err != nil {
		return "", fmt.Errorf("cannot persist requirements: %w", err)
	}
	c.store.RecordEvent("requirements", "requirements captured")
	return result, nil
}

// clarify asks the requirements agent for disambiguating questions and
// merges the operator's answers back into the instruction.
func (c *Controller) clarify(ctx context.Context, instruction string) string {
	if c.prompter == nil {
		return instruction
	}

	reply, err := c.agents.Run(ctx, roles.Requirements, engine.Task{
		Instruction: "Before writing requirements, list the clarifying questions you need answered " +
			"about this goal, at most " + fmt.Sprint(maxClarifyQuestions) + ", one per line. " +
			"Reply with exactly NONE if the goal is unambiguous.\n\nGoal:\n" + instruction,
	})
	if err != nil {
		log.Printf("⚠️ clarification skipped: %v", err)
		return instruction
	}

	questions := parseQuestions(reply)
	if len(questions) == 0 {
		return instruction
	}

	var merged strings.Builder
	merged.WriteString(instruction)
	merged.WriteString("\n\nClarifications:\n")
	for _, q := range questions {
		answer := strings.TrimSpace(c.prompter.Ask(q))
		if answer == "" {
			continue
		}
		fmt.Fprintf(&merged, "Q: %s\nA: %s\n", q, answer)
	}
	return merged.String()
}

// parseQuestions extracts up to maxClarifyQuestions question lines from the
// agent's reply.
func parseQuestions(reply string) []string {
	if strings.EqualFold(strings.TrimSpace(reply), "NONE") {
		return nil
	}
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		if line == "" || !strings.Contains(line, "?") {
			continue
		}
		out = append(out, line)
		if len(out) == maxClarifyQuestions {
			break
		}
	}
	return out
}

// runArchitecture returns the build plan: the stored one when it still
// matches the project on disk, a fresh one otherwise.
func (c *Controller) runArchitecture(ctx context.Context, instruction, requirements string, resume bool) (*Plan, error) {
	if resume && !wantsRecheck(instruction) {
		if stored := DecodePlan(c.store.Snapshot().Plan); stored != nil {
			if c.planStillValid(ctx, stored) {
				log.Printf("🗺️ reusing stored plan (%d files)", stored.TaskCount())
				return stored, nil
			}
			log.Printf("🗺️ stored plan is stale, re-planning")
		}
	}

	log.Printf("🗺️ planning architecture")
	var lastErr error
	hint := ""
	for attempt := 1; attempt <= agentRetries; attempt++ {
		reply, err := c.agents.Run(ctx, roles.Architect, engine.Task{
			Instruction: "Design the build plan for these requirements." + hint,
			Context: map[string]string{
				"goal":         instruction,
				"requirements": requirements,
			},
		})
		if err != nil {
			lastErr = err
		} else {
			plan, perr := ParsePlan(reply)
			if perr == nil {
				if err := c.store.SetPlan(plan.Encode()); err != nil {
					return nil, fmt.Errorf("cannot persist plan: %w", err)
				}
				c.store.RecordEvent("plan", fmt.Sprintf("plan accepted with %d files", plan.TaskCount()))
				return plan, nil
			}
			lastErr = perr
		}
		log.Printf("⚠️ plan attempt %d/%d failed: %v", attempt, agentRetries, lastErr)
		hint = "\n\nYour previous plan was rejected: " + lastErr.Error() + ". Fix exactly that and reply again."
	}
	return nil, &PlanError{Attempts: agentRetries, Reason: lastErr.Error()}
}

// planStillValid runs a cheap judgement of the stored plan against the
// files currently on disk. Anything but a clear VALID forces re-planning.
func (c *Controller) planStillValid(ctx context.Context, plan *Plan) bool {
	listing := "(empty project)"
	if files, err := symbols.Walk(c.root); err == nil && len(files) > 0 {
		listing = strings.Join(files, "\n")
	}

	reply, err := c.agents.Run(ctx, roles.Judge, engine.Task{
		Instruction: "Does this stored build plan still match the project on disk? " +
			"Reply with exactly VALID if building can continue from it, or STALE if it must be redone.",
		Context: map[string]string{
			"plan":          string(plan.Encode()),
			"project_files": listing,
		},
	})
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToUpper(reply), "VALID") &&
		!strings.Contains(strings.ToUpper(reply), "STALE")
}

// runTestStrategy creates test skeletons for planned files that lack them.
// It never blocks the build: failures are logged and construction proceeds.
func (c *Controller) runTestStrategy(ctx context.Context, plan *Plan) {
	var paths []string
	for _, phase := range plan.Phases {
		for _, task := range phase.Files {
			paths = append(paths, task.Path)
		}
	}

	log.Printf("🧪 preparing test skeletons")
	_, err := c.agents.Run(ctx, roles.TestWriter, engine.Task{
		Instruction: "Create or update test skeletons for the planned files that do not have tests yet. " +
			"Skeletons only: named test cases with the setup in place, assertions marked as pending. " +
			"Do not modify files that already have tests.",
		Context: map[string]string{
			"stack":         plan.Stack,
			"planned_files": strings.Join(paths, "\n"),
		},
	})
	if err != nil {
		log.Printf("⚠️ test skeleton pass failed, continuing: %v", err)
		c.store.RecordEvent("test_strategy", "skipped: "+err.Error())
		return
	}
	c.store.RecordEvent("test_strategy", "test skeletons prepared")
}

// runVerification hands the finished project to the debugger agent for the
// run-diagnose-fix loop.
func (c *Controller) runVerification(ctx context.Context, plan *Plan) error {
	log.Printf("🔬 verifying the build")
	report, err := c.agents.Run(ctx, roles.Debugger, engine.Task{
		Instruction: "The project is built. Run it, run its tests, and fix whatever fails until it works end to end.",
		Context: map[string]string{
			"stack":       plan.Stack,
			"run_command": plan.RunCommand,
		},
	})
	if err != nil {
		c.store.RecordEvent("verification", "failed: "+err.Error())
		return fmt.Errorf("verification phase failed: %w", err)
	}
	c.store.RecordEvent("verification", firstLine(report))
	return nil
}

// runWithHint retries an agent run, feeding each failure back as a
// corrective hint on the next attempt.
func (c *Controller) runWithHint(ctx context.Context, roleName string, task engine.Task) (string, error) {
	var lastErr error
	instruction := task.Instruction
	for attempt := 1; attempt <= agentRetries; attempt++ {
		task.Instruction = instruction
		if lastErr != nil {
			task.Instruction += "\n\nYour previous attempt failed: " + lastErr.Error() + ". Correct this."
		}
		result, err := c.agents.Run(ctx, roleName, task)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("⚠️ %s attempt %d/%d failed: %v", roleName, attempt, agentRetries, err)
	}
	return "", lastErr
}

// wantsRecheck reports whether the operator's instruction asks to redo the
// stored requirements and plan instead of resuming from them.
func wantsRecheck(instruction string) bool {
	lower := strings.ToLower(instruction)
	for _, phrase := range []string{"recheck", "re-check", "replan", "re-plan", "from scratch", "start over"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
