package engine

import (
	"context"
	"fmt"
	"time"
)

const (
	// defaultBackoffBase is the initial retry delay; the actual delay is
	// base * 2^attempt.
	defaultBackoffBase = 2 * time.Second
	// defaultMaxAttempts is the retry ceiling per slot/model combination.
	defaultMaxAttempts = 3
)

// ModelTiers names the three model identifiers the invoker moves between.
// Baseline is the lowest-latency tier used as the final downgrade target;
// HighCapacity is the larger-context tier forced after an overflow.
type ModelTiers struct {
	Default      string
	Baseline     string
	HighCapacity string
}

// Request is one prompt-plus-history model invocation.
type Request struct {
	System  string
	Prompt  string // appended to History as a user turn before the first attempt; empty means send history as-is
	Model   string // starting model; empty uses the default tier
	Slot    int    // starting credential slot
	Tools   []ToolSchema
	History *History // mutated in place when pruned

	MaxOutputTokens int
	Temperature     float32
}

// Invoker sends requests to the model backend and hides rate limits,
// transient network failures and context overflow behind an automatic
// ladder: backoff on the same slot, then slot rotation, then model
// downgrade. Overflow takes a separate path: prune history, force the
// high-capacity tier and retry immediately.
type Invoker struct {
	pool  *CredentialPool
	tiers ModelTiers
	hooks Hook

	backoffBase time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewInvoker builds an invoker over an immutable credential pool.
func NewInvoker(pool *CredentialPool, tiers ModelTiers, hooks Hook) *Invoker {
	if hooks == nil {
		hooks = NopHook{}
	}
	return &Invoker{
		pool:        pool,
		tiers:       tiers,
		hooks:       hooks,
		backoffBase: defaultBackoffBase,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepCtx,
	}
}

// Pool returns the credential pool the invoker was built with.
func (inv *Invoker) Pool() *CredentialPool { return inv.pool }

// Tiers returns the configured model tiers.
func (inv *Invoker) Tiers() ModelTiers { return inv.tiers }

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Invoke performs one model invocation, retrying through the ladder until
// it succeeds, a fatal error occurs, or every fallback is exhausted.
//
// Ladder, in priority order:
//  1. ContextOverflow: prune history to the last exchange, force the
//     high-capacity tier, reset the attempt counter and retry with no
//     backoff. This path always wins over the others. An overflow that
//     neither pruning nor the tier change can relieve is terminal.
//  2. RateLimited / TransientNetwork: exponential backoff on the same
//     slot/model up to the retry ceiling; then rotate to the next slot and
//     reset attempts; when rotation has visited every other slot, downgrade
//     to the baseline tier and reset attempts.
//  3. Fatal: propagate immediately.
//
// When the ladder runs dry the terminal *InvocationError propagates to the
// caller; nothing above the invoker retries it.
func (inv *Invoker) Invoke(ctx context.Context, req *Request) (LLMResponse, error) {
	if req.History == nil {
		req.History = NewHistory()
	}
	if req.Prompt != "" {
		req.History.AppendUser(req.Prompt)
	}

	model := req.Model
	if model == "" {
		model = inv.tiers.Default
	}

	slot := inv.pool.Slot(req.Slot)
	opts := ChatOptions{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}

	attempt := 0
	rotations := 0
	downgraded := false

	for {
		if err := ctx.Err(); err != nil {
			return LLMResponse{}, fmt.Errorf("invocation cancelled: %w", err)
		}

		resp, err := slot.Client.Chat(ctx, model, req.System, req.History.Turns(), req.Tools, opts)
		if err == nil {
			return resp, nil
		}

		switch Classify(err) {
		case FailureContextOverflow:
			before := req.History.Len()
			req.History.PruneToLastExchange()
			inv.hooks.OnPrune(ctx, before, req.History.Len())
			pruned := req.History.Len() < before

			upgraded := false
			if model != inv.tiers.HighCapacity && inv.tiers.HighCapacity != "" {
				inv.hooks.OnDowngrade(ctx, model, inv.tiers.HighCapacity)
				model = inv.tiers.HighCapacity
				upgraded = true
			}

			// Overflow with the history already minimal and the largest tier
			// already in effect: retrying the identical request would spin
			// forever, so the ladder is out of options.
			if !pruned && !upgraded {
				return LLMResponse{}, &InvocationError{
					Model:    model,
					Slot:     slot.Index,
					Attempts: attempt,
					Err:      err,
				}
			}
			attempt = 0
			continue // no backoff

		case FailureRateLimited, FailureTransientNetwork:
			if attempt < inv.maxAttempts {
				delay := inv.backoffBase << attempt
				inv.hooks.OnRetry(ctx, Classify(err), attempt+1, delay, err)
				if serr := inv.sleep(ctx, delay); serr != nil {
					return LLMResponse{}, fmt.Errorf("invocation cancelled during backoff: %w", serr)
				}
				attempt++
				continue
			}

			// Ceiling reached on this slot/model. Rotate first.
			if rotations < inv.pool.Size()-1 {
				next := inv.pool.Next(slot.Index)
				inv.hooks.OnRotate(ctx, slot.Index, next)
				slot = inv.pool.Slot(next)
				rotations++
				attempt = 0
				continue
			}

			// Rotation exhausted: downgrade once to the baseline tier.
			if !downgraded && inv.tiers.Baseline != "" && model != inv.tiers.Baseline {
				inv.hooks.OnDowngrade(ctx, model, inv.tiers.Baseline)
				model = inv.tiers.Baseline
				downgraded = true
				attempt = 0
				continue
			}

			return LLMResponse{}, &InvocationError{
				Model:    model,
				Slot:     slot.Index,
				Attempts: attempt,
				Err:      err,
			}

		default: // FailureFatal
			return LLMResponse{}, err
		}
	}
}
