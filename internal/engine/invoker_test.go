package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// scriptedClient returns canned outcomes in order; after the script runs
// out it keeps returning the last entry.
type scriptedClient struct {
	script []scriptStep
	calls  []scriptedCall
}

type scriptStep struct {
	resp LLMResponse
	err  error
}

type scriptedCall struct {
	model string
	turns int
}

func (c *scriptedClient) Chat(_ context.Context, model, _ string, turns []Turn, _ []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	c.calls = append(c.calls, scriptedCall{model: model, turns: len(turns)})
	i := len(c.calls) - 1
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	step := c.script[i]
	return step.resp, step.err
}

func failure(kind FailureKind) error {
	return &ProviderFailure{Kind: kind, Err: errors.New("backend says no")}
}

func newTestInvoker(clients ...LLMClient) *Invoker {
	pool, err := NewCredentialPool(clients)
	if err != nil {
		panic(err)
	}
	inv := NewInvoker(pool, ModelTiers{
		Default:      "standard",
		Baseline:     "fast",
		HighCapacity: "large",
	}, nil)
	inv.sleep = func(context.Context, time.Duration) error { return nil }
	return inv
}

func TestInvokeSuccessFirstTry(t *testing.T) {
	client := &scriptedClient{script: []scriptStep{
		{resp: LLMResponse{Content: "ok"}},
	}}
	inv := newTestInvoker(client)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hello", History: NewHistory()})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected content %q, got %q", "ok", resp.Content)
	}
	if client.calls[0].model != "standard" {
		t.Errorf("expected default tier, got %s", client.calls[0].model)
	}
}

func TestInvokeFatalPropagatesImmediately(t *testing.T) {
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureFatal)},
	}}
	inv := newTestInvoker(client)

	_, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(client.calls) != 1 {
		t.Errorf("fatal errors must not be retried, got %d calls", len(client.calls))
	}
	if IsInvocationExhausted(err) {
		t.Error("fatal error should propagate as-is, not as terminal exhaustion")
	}
}

func TestInvokeRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureRateLimited)},
		{err: failure(FailureTransientNetwork)},
		{resp: LLMResponse{Content: "recovered"}},
	}}
	inv := newTestInvoker(client)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("expected recovery after retries, got %q", resp.Content)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 calls, got %d", len(client.calls))
	}
}

func TestInvokeRotatesAfterCeiling(t *testing.T) {
	// Slot 0 always rate limits; slot 1 succeeds.
	limited := &scriptedClient{script: []scriptStep{
		{err: failure(FailureRateLimited)},
	}}
	healthy := &scriptedClient{script: []scriptStep{
		{resp: LLMResponse{Content: "from slot 1"}},
	}}
	inv := newTestInvoker(limited, healthy)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "from slot 1" {
		t.Errorf("expected rotation to slot 1, got %q", resp.Content)
	}
	// Initial attempt plus the full retry ceiling before rotating away.
	if len(limited.calls) != defaultMaxAttempts+1 {
		t.Errorf("expected %d attempts on slot 0, got %d", defaultMaxAttempts+1, len(limited.calls))
	}
	if len(healthy.calls) != 1 {
		t.Errorf("expected 1 call on slot 1, got %d", len(healthy.calls))
	}
}

func TestInvokeRotationWrapsToLowestSlot(t *testing.T) {
	// Start on the highest slot; rotation must wrap to slot 0.
	limited := &scriptedClient{script: []scriptStep{
		{err: failure(FailureTransientNetwork)},
	}}
	healthy := &scriptedClient{script: []scriptStep{
		{resp: LLMResponse{Content: "wrapped"}},
	}}
	inv := newTestInvoker(healthy, limited)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hello", Slot: 1})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "wrapped" {
		t.Errorf("expected wrap to slot 0, got %q", resp.Content)
	}
}

func TestInvokeDowngradesWhenRotationExhausted(t *testing.T) {
	// Single slot: after the ceiling the only option left is the baseline
	// tier. The client succeeds only once it sees the downgraded model.
	downgradeAware := &modelAwareClient{okModel: "fast"}
	inv := newTestInvoker(downgradeAware)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "baseline ok" {
		t.Errorf("expected baseline success, got %q", resp.Content)
	}
}

// modelAwareClient rate-limits every model except okModel.
type modelAwareClient struct {
	okModel string
	calls   int
}

func (c *modelAwareClient) Chat(_ context.Context, model, _ string, _ []Turn, _ []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	c.calls++
	if model == c.okModel {
		return LLMResponse{Content: "baseline ok"}, nil
	}
	return LLMResponse{}, failure(FailureRateLimited)
}

func TestInvokeTerminalErrorWhenEverythingExhausted(t *testing.T) {
	limited := &scriptedClient{script: []scriptStep{
		{err: failure(FailureRateLimited)},
	}}
	inv := newTestInvoker(limited)

	_, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !IsInvocationExhausted(err) {
		t.Errorf("expected terminal InvocationError, got %T: %v", err, err)
	}
}

func TestInvokeOverflowPrunesAndUpgrades(t *testing.T) {
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureContextOverflow)},
		{resp: LLMResponse{Content: "fits now"}},
	}}
	inv := newTestInvoker(client)

	history := NewHistory()
	for i := 0; i < 5; i++ {
		history.AppendUser(fmt.Sprintf("turn %d", i))
		history.AppendAssistant(LLMResponse{Content: "ack", ToolCalls: []ToolCall{{ID: "t", Name: "read_file"}}})
		history.AppendToolResults([]ToolResult{{ID: "t", Name: "read_file", Content: "data"}})
	}

	resp, err := inv.Invoke(context.Background(), &Request{History: history})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "fits now" {
		t.Errorf("expected success after prune, got %q", resp.Content)
	}
	if history.Len() > 2 {
		t.Errorf("overflow must prune history to <= 2 turns, got %d", history.Len())
	}
	if got := client.calls[1].model; got != "large" {
		t.Errorf("overflow must force the high-capacity tier, got %s", got)
	}
	// Retry is immediate: only the first failing call plus the retry.
	if len(client.calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(client.calls))
	}
}

func TestInvokeOverflowTakesPriorityOverBackoff(t *testing.T) {
	// Two rate-limit failures, then overflow, then success. The overflow
	// path must reset the attempt counter so the two earlier attempts do
	// not count toward the ceiling afterward.
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureRateLimited)},
		{err: failure(FailureRateLimited)},
		{err: failure(FailureContextOverflow)},
		{err: failure(FailureRateLimited)},
		{err: failure(FailureRateLimited)},
		{err: failure(FailureRateLimited)},
		{resp: LLMResponse{Content: "done"}},
	}}
	inv := newTestInvoker(client)

	resp, err := inv.Invoke(context.Background(), &Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("expected success, got %q", resp.Content)
	}
}

func TestInvokeOverflowWithoutProgressIsTerminal(t *testing.T) {
	// Every call overflows, the history is already minimal and after the
	// first upgrade the model is already the high-capacity tier: the
	// invoker must stop instead of retrying the identical request forever.
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureContextOverflow)},
	}}
	inv := newTestInvoker(client)

	_, err := inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if !IsInvocationExhausted(err) {
		t.Fatalf("expected terminal invocation error, got %v", err)
	}
	// One call on the default tier, one on high-capacity, then terminal.
	if len(client.calls) != 2 {
		t.Errorf("expected 2 calls before giving up, got %d", len(client.calls))
	}
	if client.calls[1].model != "large" {
		t.Errorf("second attempt should use the high-capacity tier, got %s", client.calls[1].model)
	}
}

func TestInvokeOverflowTerminalEvenWithoutHighCapacityTier(t *testing.T) {
	client := &scriptedClient{script: []scriptStep{
		{err: failure(FailureContextOverflow)},
	}}
	pool, err := NewCredentialPool([]LLMClient{client})
	if err != nil {
		t.Fatal(err)
	}
	inv := NewInvoker(pool, ModelTiers{Default: "standard"}, nil)
	inv.sleep = func(context.Context, time.Duration) error { return nil }

	_, err = inv.Invoke(context.Background(), &Request{Prompt: "hello"})
	if !IsInvocationExhausted(err) {
		t.Fatalf("expected terminal invocation error, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("no tier to upgrade to and nothing to prune: expected 1 call, got %d", len(client.calls))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"wrapped rate limit", WrapProviderError(errors.New("x"), 429, "1"), FailureRateLimited},
		{"wrapped server error", WrapProviderError(errors.New("x"), 503, ""), FailureTransientNetwork},
		{"wrapped bad request", WrapProviderError(errors.New("x"), 400, ""), FailureFatal},
		{"overflow by message", errors.New("prompt is too long: 210000 tokens > 200000 maximum context"), FailureContextOverflow},
		{"overflow beats generic 400", WrapProviderError(errors.New("maximum context length exceeded"), 0, ""), FailureContextOverflow},
		{"overflow under status 400", WrapProviderError(errors.New("prompt is too long: 210000 tokens > 200000 maximum"), 400, ""), FailureContextOverflow},
		{"overflow under status 413", WrapProviderError(errors.New("request too large"), 413, ""), FailureContextOverflow},
		{"auth under status 400 stays fatal", WrapProviderError(errors.New("invalid request: missing model"), 400, ""), FailureFatal},
		{"rate limit by message", errors.New("429: too many requests"), FailureRateLimited},
		{"network by message", errors.New("connection reset by peer"), FailureTransientNetwork},
		{"unknown is fatal", errors.New("invalid x-api-key"), FailureFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
