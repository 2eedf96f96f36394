package engine

import (
	"context"
	"log"
	"time"
)

// Hook receives observability callbacks from the invoker and the agent
// loop. Implementations must not block; they run inline on the calling
// goroutine.
type Hook interface {
	OnStepStart(ctx context.Context, role string, step int)
	OnToolCall(ctx context.Context, role string, call ToolCall)
	OnToolResult(ctx context.Context, role string, call ToolCall, result string)
	OnRetry(ctx context.Context, kind FailureKind, attempt int, delay time.Duration, err error)
	OnRotate(ctx context.Context, fromSlot, toSlot int)
	OnDowngrade(ctx context.Context, fromModel, toModel string)
	OnPrune(ctx context.Context, beforeTurns, afterTurns int)
	OnDone(ctx context.Context, role string, steps int, usage Usage)
}

// NopHook implements Hook with no-ops. Embed it to implement only the
// callbacks you need.
type NopHook struct{}

func (NopHook) OnStepStart(context.Context, string, int)                          {}
func (NopHook) OnToolCall(context.Context, string, ToolCall)                      {}
func (NopHook) OnToolResult(context.Context, string, ToolCall, string)            {}
func (NopHook) OnRetry(context.Context, FailureKind, int, time.Duration, error)   {}
func (NopHook) OnRotate(context.Context, int, int)                                {}
func (NopHook) OnDowngrade(context.Context, string, string)                       {}
func (NopHook) OnPrune(context.Context, int, int)                                 {}
func (NopHook) OnDone(context.Context, string, int, Usage)                        {}

// LogHook writes progress lines through the standard logger. It is the
// default hook wired by the CLI.
type LogHook struct {
	NopHook
	Verbose bool // dump full errors and tool results
}

func (h LogHook) OnStepStart(_ context.Context, role string, step int) {
	if h.Verbose {
		log.Printf("[%s] step %d", role, step)
	}
}

func (h LogHook) OnToolCall(_ context.Context, role string, call ToolCall) {
	log.Printf("[%s] tool %s", role, call.Name)
}

func (h LogHook) OnToolResult(_ context.Context, role string, call ToolCall, result string) {
	if h.Verbose {
		log.Printf("[%s] tool %s -> %d bytes", role, call.Name, len(result))
	}
}

func (h LogHook) OnRetry(_ context.Context, kind FailureKind, attempt int, delay time.Duration, err error) {
	if h.Verbose {
		log.Printf("retry (%s) attempt %d in %s: %v", kind, attempt, delay, err)
	} else {
		log.Printf("retry (%s) attempt %d in %s", kind, attempt, delay)
	}
}

func (h LogHook) OnRotate(_ context.Context, from, to int) {
	log.Printf("rotating credential slot %d -> %d", from, to)
}

func (h LogHook) OnDowngrade(_ context.Context, from, to string) {
	log.Printf("downgrading model %s -> %s", from, to)
}

func (h LogHook) OnPrune(_ context.Context, before, after int) {
	log.Printf("context overflow: pruned history %d -> %d turns", before, after)
}

func (h LogHook) OnDone(_ context.Context, role string, steps int, usage Usage) {
	log.Printf("[%s] done after %d steps (%d tokens)", role, steps, usage.Total)
}
