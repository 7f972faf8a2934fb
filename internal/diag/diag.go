// Package diag implements the analyzer's four fatal error kinds: a
// typed error carrying the offending value/function so a CLI caller
// can print a dump of both, optionally with a Go stack trace via
// github.com/pkg/errors.
package diag

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the four fatal error kinds the analyzer can raise.
type Kind string

const (
	Contradiction          Kind = "Contradiction"
	DeductionFailure       Kind = "DeductionFailure"
	UnrecognizedTBAA       Kind = "UnrecognizedTBAA"
	ReverseModeMissingNull Kind = "ReverseModeMissingNull"
)

// TypeError is a fatal, non-retryable analysis error: none of these
// four kinds are retried, all are programmer-visible bugs in either
// the input IR or the analysis itself.
type TypeError struct {
	Kind     Kind
	Message  string
	Function string // owning function name
	Value    string // offending value's textual IR, if any
	cause    error  // wrapped with a stack trace via pkg/errors
}

// New builds a TypeError and immediately attaches a stack trace
// (github.com/pkg/errors.WithStack) at the point of first detection,
// capturing context at construction time rather than when the error
// is finally printed.
func New(kind Kind, function, value, format string, args ...any) *TypeError {
	e := &TypeError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Function: function,
		Value:    value,
	}
	e.cause = pkgerrors.WithStack(fmt.Errorf("%s: %s", kind, e.Message))
	return e
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Kind, e.Message))
	if e.Function != "" {
		sb.WriteString(fmt.Sprintf("  in function %s\n", e.Function))
	}
	if e.Value != "" {
		sb.WriteString(fmt.Sprintf("  value: %s\n", e.Value))
	}
	return sb.String()
}

// Unwrap exposes the pkg/errors-wrapped cause so %+v and
// errors.Is/As work against the stack-trace-carrying error.
func (e *TypeError) Unwrap() error { return e.cause }

// Verbose renders the error plus its full Go stack trace, for the
// CLI's --verbose flag (spec §6: "one diagnostic flag controls
// verbose tracing").
func (e *TypeError) Verbose() string {
	return e.Error() + fmt.Sprintf("%+v\n", e.cause)
}

// NewContradiction is a convenience constructor for the most common
// fatal kind: Integer and Pointer both demanded at the same offset
// (spec §3.2 invariant 2, §7).
func NewContradiction(function, value string, a, b fmt.Stringer) *TypeError {
	return New(Contradiction, function, value,
		"conflicting scalar kinds at the same offset: %s vs %s", a, b)
}

// NewDeductionFailure reports a required-but-undetermined value
// (spec §7: "a consumer requires a concrete scalar ... but the value
// remains Unknown or Anything after fixed point").
func NewDeductionFailure(function, value string, got fmt.Stringer) *TypeError {
	return New(DeductionFailure, function, value,
		"required a concrete scalar kind but got %s", got)
}

// NewUnrecognizedTBAA reports a TBAA-tagged instruction that is
// neither load/store, memcpy/memmove, nor a pointer-returning call
// (spec §7).
func NewUnrecognizedTBAA(function, value, tag string) *TypeError {
	return New(UnrecognizedTBAA, function, value,
		"TBAA tag %q attached to an instruction kind the analyzer does not seed from", tag)
}

// NewReverseModeMissingNull reports an operand lacking an adjoint
// whose type cannot synthesize a zero (spec §7, §4.5).
func NewReverseModeMissingNull(function, value string) *TypeError {
	return New(ReverseModeMissingNull, function, value,
		"operand has no adjoint and its type cannot synthesize a zero")
}
