package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/roles"
	"github.com/ChamsBouzaiene/foreman/internal/state"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

type agentCall struct {
	Role string
	Task engine.Task
}

// scriptedAgents replays canned replies per role and records every call.
type scriptedAgents struct {
	mu      sync.Mutex
	calls   []agentCall
	replies map[string][]string
	errs    map[string]error
}

func (a *scriptedAgents) Run(_ context.Context, role string, task engine.Task) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, agentCall{Role: role, Task: task})

	if err := a.errs[role]; err != nil {
		return "", err
	}
	if q := a.replies[role]; len(q) > 0 {
		a.replies[role] = q[1:]
		return q[0], nil
	}
	switch role {
	case roles.Architect:
		return goodPlan, nil
	case roles.Auditor:
		return "PASS\nmatches its description", nil
	case roles.Judge:
		return "REFAC", nil
	default:
		return "done", nil
	}
}

func (a *scriptedAgents) callsFor(role string) []agentCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []agentCall
	for _, c := range a.calls {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

func (a *scriptedAgents) pathsFor(role string) []string {
	var out []string
	for _, c := range a.callsFor(role) {
		out = append(out, c.Task.Context["path"])
	}
	return out
}

func newTestController(t *testing.T, agents Agents) (*Controller, *state.Store, string) {
	t.Helper()
	root := t.TempDir()
	store := state.NewStore(root)
	store.Load()
	return NewController(root, store, nil, agents, nil), store, root
}

func TestFreshBuildProcessesPhasesInOrder(t *testing.T) {
	agents := &scriptedAgents{}
	c, store, _ := newTestController(t, agents)

	if err := c.Run(context.Background(), "build a todo app", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Fresh files never see the judge: BUILD goes straight to the engineer.
	if n := len(agents.callsFor(roles.Judge)); n != 0 {
		t.Errorf("judge called %d times for missing files", n)
	}

	engineerPaths := agents.pathsFor(roles.Engineer)
	if len(engineerPaths) != 2 || engineerPaths[0] != "store.py" || engineerPaths[1] != "app.py" {
		t.Errorf("phase 1 must finish before phase 2, engineer order: %v", engineerPaths)
	}
	if len(agents.callsFor(roles.Requirements)) != 1 || len(agents.callsFor(roles.Architect)) != 1 {
		t.Error("requirements and architect should each run once")
	}

	project := store.Snapshot()
	for _, path := range []string{"store.py", "app.py"} {
		rec := project.Files[path]
		if rec == nil || rec.Status != state.StatusPerfected {
			t.Errorf("%s should be perfected after PASS audit, got %+v", path, rec)
		}
	}
	if project.Checkpoint.LastPhaseIndex != 1 || project.Checkpoint.LastFilePath != "app.py" {
		t.Errorf("checkpoint not advanced: %+v", project.Checkpoint)
	}
}

func TestResumeSkipsPerfectedFileWithNoAgentCalls(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Judge: {"VALID"}, // stored plan still matches the project
	}}
	c, store, _ := newTestController(t, agents)

	plan, _ := ParsePlan(goodPlan)
	store.SetRequirements("stored requirements")
	store.SetPlan(plan.Encode())
	store.SetFileStatus("store.py", state.StatusPerfected, "PASS")
	store.SetCheckpoint(0, "store.py")

	if err := c.Run(context.Background(), "continue the project", true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := len(agents.callsFor(roles.Requirements)); n != 0 {
		t.Errorf("stored requirements should be reused, agent ran %d times", n)
	}
	if n := len(agents.callsFor(roles.Architect)); n != 0 {
		t.Errorf("valid stored plan should be reused, architect ran %d times", n)
	}
	for _, path := range agents.pathsFor(roles.Engineer) {
		if path == "store.py" {
			t.Error("perfected store.py must be skipped with no engineer call")
		}
	}
	for _, path := range agents.pathsFor(roles.Auditor) {
		if path == "store.py" {
			t.Error("perfected store.py must be skipped with no audit call")
		}
	}
}

func TestResumeNeverReentersEarlierPhases(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Judge: {"VALID"},
	}}
	c, store, _ := newTestController(t, agents)

	plan, _ := ParsePlan(goodPlan)
	store.SetRequirements("stored requirements")
	store.SetPlan(plan.Encode())
	// store.py finished phase 0 but only as BUILT; the checkpoint already
	// sits in phase 1, so phase 0 must not run again regardless.
	store.SetFileStatus("store.py", state.StatusBuilt, "FAIL: style nits")
	store.SetCheckpoint(1, "app.py")

	if err := c.Run(context.Background(), "continue the project", true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	paths := agents.pathsFor(roles.Engineer)
	if len(paths) != 1 || paths[0] != "app.py" {
		t.Errorf("only phase 1 should run, engineer saw: %v", paths)
	}
}

func TestRecheckPhraseForcesReplanning(t *testing.T) {
	agents := &scriptedAgents{}
	c, store, _ := newTestController(t, agents)

	plan, _ := ParsePlan(goodPlan)
	store.SetRequirements("stored requirements")
	store.SetPlan(plan.Encode())

	if err := c.Run(context.Background(), "recheck everything and rebuild", true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(agents.callsFor(roles.Requirements)) == 0 {
		t.Error("recheck instruction must re-run the requirements agent")
	}
	if len(agents.callsFor(roles.Architect)) == 0 {
		t.Error("recheck instruction must re-run the architect")
	}
}

func TestPlanRetriesWithCorrectiveHint(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Architect: {"not json at all", "still not json", goodPlan},
	}}
	c, _, _ := newTestController(t, agents)

	if err := c.Run(context.Background(), "build it", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := agents.callsFor(roles.Architect)
	if len(calls) != 3 {
		t.Fatalf("architect should run 3 times, ran %d", len(calls))
	}
	if strings.Contains(calls[0].Task.Instruction, "rejected") {
		t.Error("first attempt must not carry a hint")
	}
	for i := 1; i < 3; i++ {
		if !strings.Contains(calls[i].Task.Instruction, "rejected") {
			t.Errorf("attempt %d should carry the prior rejection as a hint", i+1)
		}
	}
}

func TestPlanErrorAfterRetriesExhausted(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Architect: {"bad", "bad", "bad"},
	}}
	c, _, _ := newTestController(t, agents)

	err := c.Run(context.Background(), "build it", false)
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("err = %v, want PlanError", err)
	}
	if planErr.Attempts != agentRetries {
		t.Errorf("attempts = %d, want %d", planErr.Attempts, agentRetries)
	}
}

func TestJudgeSkipForExistingFile(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Judge: {"SKIP, this file already does its job"},
	}}
	c, store, root := newTestController(t, agents)
	os.WriteFile(filepath.Join(root, "store.py"), []byte("class Store: pass\n"), 0o644)

	plan, _ := ParsePlan(goodPlan)
	task := plan.Phases[0].Files[0]
	if err := c.buildFile(context.Background(), 0, task, false); err != nil {
		t.Fatalf("buildFile: %v", err)
	}

	if len(agents.callsFor(roles.Engineer)) != 0 {
		t.Error("SKIP verdict must not invoke the engineer")
	}
	if cp := store.Snapshot().Checkpoint; cp.LastFilePath != "store.py" {
		t.Errorf("skipped file still completes the task, checkpoint: %+v", cp)
	}
}

func TestAuditFailLeavesFileBuilt(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Auditor: {"FAIL\nline 12: unhandled error path"},
	}}
	c, store, _ := newTestController(t, agents)

	plan, _ := ParsePlan(goodPlan)
	if err := c.buildFile(context.Background(), 0, plan.Phases[0].Files[0], false); err != nil {
		t.Fatalf("buildFile: %v", err)
	}

	rec := store.FileRecordFor("store.py")
	if rec == nil || rec.Status != state.StatusBuilt {
		t.Fatalf("FAIL audit should leave status BUILT, got %+v", rec)
	}
	if !strings.Contains(rec.LastAudit, "unhandled error path") {
		t.Errorf("audit text not recorded: %q", rec.LastAudit)
	}
}

func TestPerFileFailureDoesNotAbortSiblings(t *testing.T) {
	agents := &scriptedAgents{errs: map[string]error{
		roles.Engineer: errors.New("model refused"),
	}}
	c, store, _ := newTestController(t, agents)

	plan, _ := ParsePlan(goodPlan)
	if err := c.runConstruction(context.Background(), plan, false); err != nil {
		t.Fatalf("runConstruction: %v", err)
	}

	// Both files were attempted despite each failing.
	if n := len(agents.callsFor(roles.Engineer)); n != 2 {
		t.Errorf("engineer attempts = %d, want 2", n)
	}
	if bugs := store.Snapshot().Bugs; len(bugs) != 2 {
		t.Errorf("failures should be recorded as bugs, got %d", len(bugs))
	}
}

func TestInvalidationIsOneHop(t *testing.T) {
	root := t.TempDir()
	idx, err := symbols.Open(context.Background(), root)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	files := map[string]string{
		"a.py": "def base(): pass\n",
		"b.py": "from a import base\n",
		"c.py": "from b import middle\n",
	}
	for path, content := range files {
		os.WriteFile(filepath.Join(root, path), []byte(content), 0o644)
	}
	for _, path := range []string{"a.py", "b.py", "c.py"} {
		if err := idx.IndexFile(ctx, path); err != nil {
			t.Fatalf("index %s: %v", path, err)
		}
	}

	store := state.NewStore(root)
	store.Load()
	store.SetFileStatus("b.py", state.StatusPerfected, "PASS")
	store.SetFileStatus("c.py", state.StatusPerfected, "PASS")

	c := NewController(root, store, idx, &scriptedAgents{}, nil)
	c.invalidateDependents(ctx, "a.py")

	if rec := store.FileRecordFor("b.py"); rec.Status != state.StatusStale {
		t.Errorf("direct dependent b.py should be stale, got %s", rec.Status)
	}
	if rec := store.FileRecordFor("c.py"); rec.Status != state.StatusPerfected {
		t.Errorf("transitive dependent c.py must not change, got %s", rec.Status)
	}
}

// canned prompter for clarification tests.
type cannedPrompter struct {
	asked   []string
	answers map[string]string
}

func (p *cannedPrompter) Ask(question string) string {
	p.asked = append(p.asked, question)
	return p.answers[question]
}

func TestClarificationMergesAnswers(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Requirements: {
			"1. Which database should be used?\n2. Is authentication required?",
			"the requirements document",
		},
	}}
	c, _, _ := newTestController(t, agents)
	prompter := &cannedPrompter{answers: map[string]string{
		"Which database should be used?": "sqlite",
		"Is authentication required?":    "no",
	}}
	c.prompter = prompter

	result, err := c.runRequirements(context.Background(), "build a url shortener", false)
	if err != nil {
		t.Fatalf("runRequirements: %v", err)
	}
	if result != "the requirements document" {
		t.Errorf("unexpected result %q", result)
	}
	if len(prompter.asked) != 2 {
		t.Fatalf("expected 2 questions asked, got %v", prompter.asked)
	}

	calls := agents.callsFor(roles.Requirements)
	final := calls[len(calls)-1].Task.Instruction
	if !strings.Contains(final, "Q: Which database should be used?") || !strings.Contains(final, "A: sqlite") {
		t.Errorf("answers not merged into the instruction:\n%s", final)
	}
}

func TestClarificationNoneAsksNothing(t *testing.T) {
	agents := &scriptedAgents{replies: map[string][]string{
		roles.Requirements: {"NONE", "the requirements document"},
	}}
	c, _, _ := newTestController(t, agents)
	prompter := &cannedPrompter{}
	c.prompter = prompter

	if _, err := c.runRequirements(context.Background(), "build it", false); err != nil {
		t.Fatal(err)
	}
	if len(prompter.asked) != 0 {
		t.Errorf("NONE reply must not prompt the operator, asked %v", prompter.asked)
	}
}

func TestWantsRecheck(t *testing.T) {
	tests := []struct {
		instruction string
		want        bool
	}{
		{"continue where we left off", false},
		{"please recheck the requirements", true},
		{"re-plan the whole thing", true},
		{"start over with a simpler design", true},
		{"add a dark mode toggle", false},
	}
	for _, tt := range tests {
		if got := wantsRecheck(tt.instruction); got != tt.want {
			t.Errorf("wantsRecheck(%q) = %v, want %v", tt.instruction, got, tt.want)
		}
	}
}

func TestTestStrategyFailureNeverBlocksBuild(t *testing.T) {
	agents := &scriptedAgents{errs: map[string]error{
		roles.TestWriter: errors.New("step budget exhausted"),
	}}
	c, _, _ := newTestController(t, agents)

	if err := c.Run(context.Background(), "build it", false); err != nil {
		t.Fatalf("test skeleton failure must not fail the build: %v", err)
	}
	if n := len(agents.callsFor(roles.Engineer)); n != 2 {
		t.Errorf("construction should still run, engineer calls = %d", n)
	}
}
