// Package asp provides a conflict-driven answer-set solving core for Go.
// It implements an incremental assignment model over Boolean literals, a
// pluggable propagator protocol for theory-specific reasoning, clause
// bookkeeping with retention classes, and lazy model enumeration driven
// either by callbacks or by an iterator handle.
//
// The package is organized around a small number of cooperating components:
//   - Symbol/Signature: interned, totally ordered term values
//   - SymbolicAtoms: the mapping from symbols to solver literals
//   - Assignment: the truth-value store consulted during propagation
//   - Propagator: the extension protocol (Init/Propagate/Undo/Check)
//   - SolveHandle: the lazy enumeration iterator
//   - Control: the orchestrator owning one grounded program instance
//
// All blocking operations accept a context.Context, and long-running search
// is cancellable at decision and propagation checkpoints. Components are
// safe for the concurrency described on their methods; portfolio search
// partitions mutable state per worker thread.
//
// Ground programs are translated to clauses by Clark completion without an
// unfounded-set check: positive recursion such as "a :- b. b :- a." admits
// the non-minimal model in which the cycle supports itself. Programs whose
// positive dependency graph is acyclic are unaffected.
package asp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode classifies the failures surfaced by this package. Failing calls
// are locally recoverable, but the affected Control must be discarded and
// reconstructed; the one exception is the parse-only entry point
// (Control.Parse), which leaves its Control valid even on failure.
type ErrorCode int

const (
	// CodeSuccess reports that no error occurred.
	CodeSuccess ErrorCode = iota

	// CodeFatal marks unrecoverable failures; the caller should abort the
	// current chain of operations.
	CodeFatal

	// CodeRuntime marks transient resource or input conditions.
	CodeRuntime

	// CodeLogic marks API misuse, such as inspecting a symbol as the wrong
	// variant or advancing a closed solve handle.
	CodeLogic

	// CodeBadAlloc marks allocation failure.
	CodeBadAlloc

	// CodeUnknown marks uncategorized internal faults.
	CodeUnknown
)

// String returns the canonical name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeFatal:
		return "fatal"
	case CodeRuntime:
		return "runtime"
	case CodeLogic:
		return "logic"
	case CodeBadAlloc:
		return "bad_alloc"
	case CodeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Category sentinels. Errors returned by this package wrap exactly one of
// these, so callers can classify failures with errors.Is or CodeOf without
// parsing messages.
var (
	ErrFatal    = errors.New("fatal error")
	ErrRuntime  = errors.New("runtime error")
	ErrLogic    = errors.New("logic error")
	ErrBadAlloc = errors.New("allocation failure")
	ErrUnknown  = errors.New("unknown error")
)

// codeError attaches an ErrorCode to its category sentinel so both CodeOf
// and errors.Is work on wrapped values.
type codeError struct {
	code ErrorCode
	msg  string
}

func (e *codeError) Error() string { return e.msg }

func (e *codeError) Unwrap() error {
	switch e.code {
	case CodeFatal:
		return ErrFatal
	case CodeRuntime:
		return ErrRuntime
	case CodeLogic:
		return ErrLogic
	case CodeBadAlloc:
		return ErrBadAlloc
	default:
		return ErrUnknown
	}
}

// newError builds a categorized error with a formatted message.
func newError(code ErrorCode, format string, args ...interface{}) error {
	return errors.WithStack(&codeError{code: code, msg: fmt.Sprintf(format, args...)})
}

// wrapError adds context to err while preserving its category.
func wrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// CodeOf reports the ErrorCode carried by err, walking wrapped causes.
// A nil error maps to CodeSuccess; errors not created by this package map
// to CodeUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	for e := err; e != nil; {
		if ce, ok := e.(*codeError); ok {
			return ce.code
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	switch {
	case errors.Is(err, ErrFatal):
		return CodeFatal
	case errors.Is(err, ErrRuntime):
		return CodeRuntime
	case errors.Is(err, ErrLogic):
		return CodeLogic
	case errors.Is(err, ErrBadAlloc):
		return CodeBadAlloc
	default:
		return CodeUnknown
	}
}
