// Package engine implements the agentic execution core: the resilient
// model invocation layer and the per-role tool-calling loop.
// This file contains failure classification and the engine error types.

package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureKind classifies a failed model invocation. The invoker's
// retry/rotate/downgrade ladder is driven entirely by this classification.
type FailureKind string

const (
	// FailureRateLimited means the provider rejected the call for rate or
	// quota-per-minute reasons. Recoverable via backoff and slot rotation.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureContextOverflow means the accumulated conversation exceeds the
	// model's input capacity. Recoverable via history pruning and a tier
	// upgrade, never via plain retry.
	FailureContextOverflow FailureKind = "context_overflow"
	// FailureTransientNetwork covers 5xx responses, timeouts and connection
	// resets. Recoverable via backoff and slot rotation.
	FailureTransientNetwork FailureKind = "transient_network"
	// FailureFatal covers everything else (auth failures, malformed
	// requests, content policy). Never retried.
	FailureFatal FailureKind = "fatal"
)

// ProviderFailure wraps a provider error with classification metadata.
type ProviderFailure struct {
	Kind       FailureKind
	HTTPStatus int
	RetryAfter string // Retry-After header value, if present
	Err        error
}

func (e *ProviderFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *ProviderFailure) Unwrap() error { return e.Err }

// WrapProviderError classifies a provider SDK error using its HTTP status
// when known, falling back to message sniffing. Providers call this at the
// SDK boundary so the invoker only ever sees classified failures.
func WrapProviderError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	kind := classifyStatus(httpStatus)
	if kind == "" {
		kind = classifyMessage(err.Error())
	} else if kind == FailureFatal {
		// Anthropic reports context overflow as a plain 400 whose message
		// ("prompt is too long") is the only signal. A Fatal verdict from the
		// status alone therefore defers to message sniffing before sticking.
		if sniffed := classifyMessage(err.Error()); sniffed == FailureContextOverflow {
			kind = sniffed
		}
	}
	return &ProviderFailure{
		Kind:       kind,
		HTTPStatus: httpStatus,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// Classify returns the failure kind for an invocation error.
// Unclassified errors are fatal.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureFatal
	}
	var pf *ProviderFailure
	if errors.As(err, &pf) {
		return pf.Kind
	}
	return classifyMessage(err.Error())
}

func classifyStatus(status int) FailureKind {
	switch status {
	case 0:
		return "" // no status known, fall back to message sniffing
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusRequestEntityTooLarge:
		return FailureContextOverflow
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return FailureTransientNetwork
	default:
		return FailureFatal
	}
}

// classifyMessage sniffs the error text for well-known provider phrasings.
// Overflow is checked first: some backends report it as a generic 400 whose
// message is the only signal.
func classifyMessage(msg string) FailureKind {
	s := strings.ToLower(msg)

	switch {
	case strings.Contains(s, "context length"),
		strings.Contains(s, "context window"),
		strings.Contains(s, "maximum context"),
		strings.Contains(s, "token limit"),
		strings.Contains(s, "prompt is too long"),
		strings.Contains(s, "input is too long"):
		return FailureContextOverflow

	case strings.Contains(s, "429"),
		strings.Contains(s, "rate limit"),
		strings.Contains(s, "too many requests"),
		strings.Contains(s, "resource exhausted"):
		return FailureRateLimited

	case strings.Contains(s, "500"),
		strings.Contains(s, "502"),
		strings.Contains(s, "503"),
		strings.Contains(s, "504"),
		strings.Contains(s, "internal server error"),
		strings.Contains(s, "bad gateway"),
		strings.Contains(s, "service unavailable"),
		strings.Contains(s, "overloaded"),
		strings.Contains(s, "timeout"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "temporary failure"):
		return FailureTransientNetwork

	default:
		return FailureFatal
	}
}

// InvocationError is the terminal invocation failure: every retry, rotation
// and downgrade option was exhausted. It is unrecoverable and propagates to
// the top of the run.
type InvocationError struct {
	Model    string // model in effect on the final attempt
	Slot     int    // credential slot of the final attempt
	Attempts int    // attempts on the final slot/model combination
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("model invocation exhausted all fallbacks (model=%s slot=%d attempts=%d): %v",
		e.Model, e.Slot, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsInvocationExhausted reports whether err is a terminal invocation error.
func IsInvocationExhausted(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// StepBudgetError reports that an agent loop ran out of steps without the
// model producing a final textual answer.
type StepBudgetError struct {
	Role  string
	Steps int
}

func (e *StepBudgetError) Error() string {
	return fmt.Sprintf("agent %q exceeded its step budget after %d steps", e.Role, e.Steps)
}

// IsStepBudgetExceeded reports whether err is a step budget violation.
func IsStepBudgetExceeded(err error) bool {
	var se *StepBudgetError
	return errors.As(err, &se)
}
