// Package agent is the plan/execute/verify loop: a planner turns a routed
// query into a step plan, the executor runs each step in isolation, and the
// verifier judges whether the turn produced a usable outcome.
package agent

import "fmt"

// FaultKind discriminates step failures. Every non-nil Result.Err carries
// exactly one kind; callers switch on it instead of parsing messages.
type FaultKind int

const (
	// ToolFault is a failed external command or unusable tool input.
	ToolFault FaultKind = iota
	// ServiceUnavailable is an unreachable model or embedding service.
	ServiceUnavailable
	// ParseFault is model output that could not be decoded as requested.
	ParseFault
	// IOFault is a filesystem read or write failure.
	IOFault
	// TimeoutFault is a subprocess or request that exceeded its deadline.
	TimeoutFault
)

func (k FaultKind) String() string {
	switch k {
	case ToolFault:
		return "tool"
	case ServiceUnavailable:
		return "service_unavailable"
	case ParseFault:
		return "parse"
	case IOFault:
		return "io"
	case TimeoutFault:
		return "timeout"
	default:
		return "unknown"
	}
}

// Fault is a step failure with its discriminant.
type Fault struct {
	Kind   FaultKind
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Result is the outcome of one executed step. Err nil means success; Output
// is the user-facing text either way.
type Result struct {
	Tool   string
	Output string
	Err    *Fault
}

func ok(tool, output string) Result {
	return Result{Tool: tool, Output: output}
}

func fail(tool string, kind FaultKind, format string, args ...any) Result {
	return Result{Tool: tool, Err: &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}}
}
