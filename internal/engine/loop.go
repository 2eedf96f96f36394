package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// continuationPrompt is sent on every turn after the first. History, not
// prompt text, carries the conversation state, which bounds token growth.
const continuationPrompt = "Continue with the task. Reply with plain text when you are done."

// graceExtensionSteps is added to a loop's budget each time it reaches its
// limit while the budget is still under graceExtensionCeiling.
const (
	graceExtensionSteps   = 5
	graceExtensionCeiling = 100
)

// ToolExecutor runs a named tool on behalf of an agent. It never reports an
// error: all failures are mapped to textual "Error: ..." results so the
// model can read them and self-correct.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any, callerRole string) string
	Schemas() []ToolSchema
}

// Loop is the per-agent tool-calling loop. One Execute call turns a single
// task into a bounded sequence of model calls and tool invocations and
// returns the model's final textual answer.
type Loop struct {
	invoker *Invoker
	tools   ToolExecutor
	hooks   Hook

	// Slot pins the credential slot this loop starts its invocations on.
	Slot int
	// MaxOutputTokens is forwarded to every invocation.
	MaxOutputTokens int
}

// NewLoop builds an agent loop over the invoker and tool executor.
func NewLoop(invoker *Invoker, tools ToolExecutor, hooks Hook) *Loop {
	if hooks == nil {
		hooks = NopHook{}
	}
	return &Loop{invoker: invoker, tools: tools, hooks: hooks}
}

// Execute runs one task under the given role until the model returns plain
// text, the (possibly grace-extended) step budget runs out, or the
// invocation layer fails terminally.
//
// Tool calls inside one model turn execute strictly sequentially, in the
// order the model returned them: tools commonly mutate shared file state
// and concurrent execution would corrupt it. All results of one turn are
// appended to history as a single batched tool turn.
func (l *Loop) Execute(ctx context.Context, role Role, task Task) (string, error) {
	history := NewHistory()
	system := role.SystemInstruction()
	schemas := role.FilterSchemas(l.tools.Schemas())

	model := role.Model
	budget := role.EffectiveMaxSteps()

	var totals Usage
	prompt := firstPrompt(task)

	for step := 0; ; step++ {
		if step >= budget {
			// Grace extension: long construction tasks legitimately need a
			// few more exchanges. Recurs until the budget reaches the
			// ceiling, then the loop fails for good.
			if budget < graceExtensionCeiling {
				budget += graceExtensionSteps
			} else {
				return "", &StepBudgetError{Role: role.Name, Steps: step}
			}
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("agent %q cancelled: %w", role.Name, err)
		}

		l.hooks.OnStepStart(ctx, role.Name, step)

		resp, err := l.invoker.Invoke(ctx, &Request{
			System:          system,
			Prompt:          prompt,
			Model:           model,
			Slot:            l.Slot,
			Tools:           schemas,
			History:         history,
			MaxOutputTokens: l.MaxOutputTokens,
		})
		if err != nil {
			return "", err
		}
		totals.Add(resp.Usage)
		history.AppendAssistant(resp)

		if len(resp.ToolCalls) == 0 {
			// Plain text means the task is done; the text is the result.
			l.hooks.OnDone(ctx, role.Name, step+1, totals)
			return resp.Content, nil
		}

		results := make([]ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			l.hooks.OnToolCall(ctx, role.Name, call)
			out := l.tools.Execute(ctx, call.Name, call.Args, role.Name)
			l.hooks.OnToolResult(ctx, role.Name, call, out)
			results = append(results, ToolResult{
				ID:      call.ID,
				Name:    call.Name,
				Content: out,
			})
		}
		history.AppendToolResults(results)

		prompt = continuationPrompt
	}
}

// firstPrompt renders the task instruction plus its structured context,
// serialized deterministically so identical tasks produce identical
// prompts.
func firstPrompt(task Task) string {
	if len(task.Context) == 0 {
		return task.Instruction
	}

	// json.Marshal orders map keys, so the serialization is stable.
	blob, err := json.MarshalIndent(task.Context, "", "  ")
	if err != nil {
		return task.Instruction
	}
	return task.Instruction + "\n\nContext:\n" + string(blob)
}
