package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

// chattyClient always requests tool calls, never finishing.
type chattyClient struct {
	calls int
}

func (c *chattyClient) Chat(context.Context, string, string, []Turn, []ToolSchema, ChatOptions) (LLMResponse, error) {
	c.calls++
	return LLMResponse{
		ToolCalls: []ToolCall{{ID: fmt.Sprintf("c%d", c.calls), Name: "read_file", Args: map[string]any{"path": "x"}}},
	}, nil
}

// finishAfterClient requests tools for n turns, then answers with text.
type finishAfterClient struct {
	n     int
	calls int
}

func (c *finishAfterClient) Chat(_ context.Context, _, _ string, turns []Turn, tools []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	c.calls++
	if c.calls <= c.n {
		return LLMResponse{
			ToolCalls: []ToolCall{
				{ID: "a", Name: "read_file", Args: map[string]any{"path": "a"}},
				{ID: "b", Name: "list_files", Args: map[string]any{}},
				{ID: "c", Name: "search_files", Args: map[string]any{"query": "q"}},
			},
		}, nil
	}
	return LLMResponse{Content: "all done"}, nil
}

// recordingExecutor records execution order and detects concurrent entry.
type recordingExecutor struct {
	order    []string
	inFlight atomic.Int32
	raced    atomic.Bool
	schemas  []ToolSchema
}

func (e *recordingExecutor) Execute(_ context.Context, name string, _ map[string]any, _ string) string {
	if e.inFlight.Add(1) > 1 {
		e.raced.Store(true)
	}
	defer e.inFlight.Add(-1)
	e.order = append(e.order, name)
	return "ok"
}

func (e *recordingExecutor) Schemas() []ToolSchema {
	if e.schemas != nil {
		return e.schemas
	}
	return []ToolSchema{
		{Name: "read_file"},
		{Name: "list_files"},
		{Name: "search_files"},
	}
}

func newTestLoop(client LLMClient, exec ToolExecutor) *Loop {
	pool, _ := NewCredentialPool([]LLMClient{client})
	inv := NewInvoker(pool, ModelTiers{Default: "standard", Baseline: "fast", HighCapacity: "large"}, nil)
	return NewLoop(inv, exec, nil)
}

func TestLoopReturnsFinalText(t *testing.T) {
	client := &finishAfterClient{n: 2}
	exec := &recordingExecutor{}
	loop := newTestLoop(client, exec)

	out, err := loop.Execute(context.Background(), Role{Name: "engineer"}, Task{Instruction: "build it"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "all done" {
		t.Errorf("expected final text, got %q", out)
	}
}

func TestLoopToolOrderIsSequential(t *testing.T) {
	client := &finishAfterClient{n: 1}
	exec := &recordingExecutor{}
	loop := newTestLoop(client, exec)

	if _, err := loop.Execute(context.Background(), Role{Name: "engineer"}, Task{Instruction: "go"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{"read_file", "list_files", "search_files"}
	if len(exec.order) != len(want) {
		t.Fatalf("expected %d tool executions, got %d", len(want), len(exec.order))
	}
	for i, name := range want {
		if exec.order[i] != name {
			t.Errorf("execution %d = %s, want %s (order must match the model's)", i, exec.order[i], name)
		}
	}
	if exec.raced.Load() {
		t.Error("tool calls from one turn must never run concurrently")
	}
}

func TestLoopStepBudget(t *testing.T) {
	tests := []struct {
		name      string
		maxSteps  int
		wantSteps int
	}{
		// Budgets under the grace ceiling are repeatedly extended by 5
		// until they reach it, then the loop fails.
		{"default budget extends to ceiling", 0, graceExtensionCeiling},
		{"small budget extends to ceiling", 20, graceExtensionCeiling},
		{"97 overshoots the ceiling by its last grant", 97, 102},
		// At or above the ceiling there is no grace: exactly N steps.
		{"at ceiling runs exactly N", 100, 100},
		{"above ceiling runs exactly N", 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &chattyClient{}
			exec := &recordingExecutor{}
			loop := newTestLoop(client, exec)

			_, err := loop.Execute(context.Background(), Role{Name: "builder", MaxSteps: tt.maxSteps}, Task{Instruction: "never ends"})
			if err == nil {
				t.Fatal("expected step budget error")
			}
			if !IsStepBudgetExceeded(err) {
				t.Fatalf("expected StepBudgetError, got %T: %v", err, err)
			}
			if client.calls != tt.wantSteps {
				t.Errorf("ran %d steps, want %d", client.calls, tt.wantSteps)
			}
		})
	}
}

func TestLoopAdvertisesFilteredSchemas(t *testing.T) {
	var seen []ToolSchema
	client := &schemaSpyClient{seen: &seen}
	exec := &recordingExecutor{}
	loop := newTestLoop(client, exec)

	role := Role{
		Name:         "auditor",
		AllowedTools: map[string]bool{"read_file": true, "list_files": true},
	}
	if _, err := loop.Execute(context.Background(), role, Task{Instruction: "audit"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(seen) != 2 {
		t.Fatalf("restricted role advertised %d tools, want 2", len(seen))
	}
	for _, s := range seen {
		if !role.AllowedTools[s.Name] {
			t.Errorf("schema %s leaked past the role filter", s.Name)
		}
	}
}

type schemaSpyClient struct {
	seen *[]ToolSchema
}

func (c *schemaSpyClient) Chat(_ context.Context, _, _ string, _ []Turn, tools []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	*c.seen = tools
	return LLMResponse{Content: "done"}, nil
}

func TestLoopSerializesTaskContext(t *testing.T) {
	var firstTurn string
	client := &promptSpyClient{first: &firstTurn}
	loop := newTestLoop(client, &recordingExecutor{})

	task := Task{
		Instruction: "implement the parser",
		Context:     map[string]string{"stack": "go", "file": "parser.go"},
	}
	if _, err := loop.Execute(context.Background(), Role{Name: "engineer"}, task); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if firstTurn == task.Instruction {
		t.Error("structured context was not serialized into the first prompt")
	}
	for _, want := range []string{"implement the parser", "parser.go", "stack"} {
		if !strings.Contains(firstTurn, want) {
			t.Errorf("first prompt missing %q:\n%s", want, firstTurn)
		}
	}
}

type promptSpyClient struct {
	first *string
}

func (c *promptSpyClient) Chat(_ context.Context, _, _ string, turns []Turn, _ []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	if len(turns) > 0 && *c.first == "" {
		*c.first = turns[0].Content
	}
	return LLMResponse{Content: "done"}, nil
}
