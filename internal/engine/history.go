package engine

// History is the ordered conversation log owned by one agent loop
// invocation. It grows append-only during the loop's lifetime; the only
// mutation besides appending is PruneToLastExchange, applied in place by the
// invoker when the model reports a context overflow.
type History struct {
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Turns returns the underlying turn slice. Callers must treat it as
// read-only; the invoker may replace it wholesale when pruning.
func (h *History) Turns() []Turn { return h.turns }

// Len returns the number of turns.
func (h *History) Len() int { return len(h.turns) }

// AppendUser appends a user prompt turn.
func (h *History) AppendUser(text string) {
	h.turns = append(h.turns, Turn{Role: RoleUser, Content: text})
}

// AppendAssistant appends a model turn with its requested tool calls.
func (h *History) AppendAssistant(resp LLMResponse) {
	h.turns = append(h.turns, Turn{
		Role:      RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
}

// AppendToolResults appends the batched results of one model turn as a
// single tool turn.
func (h *History) AppendToolResults(results []ToolResult) {
	h.turns = append(h.turns, Turn{Role: RoleTool, Results: results})
}

// PruneToLastExchange truncates the history to the most recent exchange:
// the last model turn plus its paired tool-result turn, if any. The result
// is never longer than two turns. On a history with no model turn yet, only
// the newest turn survives.
func (h *History) PruneToLastExchange() {
	if len(h.turns) <= 1 {
		return
	}

	last := -1
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == RoleAssistant {
			last = i
			break
		}
	}
	if last == -1 {
		h.turns = h.turns[len(h.turns)-1:]
		return
	}

	end := last + 1
	if end < len(h.turns) && h.turns[end].Role == RoleTool {
		end++
	}
	h.turns = h.turns[last:end]
}
