package agent

import "strings"

// Verdict is the verifier's judgment of an executed plan.
type Verdict int

const (
	// Accept means the turn produced a usable outcome.
	Accept Verdict = iota
	// Retry means the turn failed or produced nothing useful.
	Retry
	// Abort is reserved for unrecoverable session states. Nothing currently
	// produces it.
	Abort
)

func (v Verdict) String() string {
	switch v {
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "accept"
	}
}

// Verify judges a plan's results: any faulted step means Retry, and so does
// a plan that ran clean but produced no meaningful output.
func Verify(results []Result) Verdict {
	if len(results) == 0 {
		return Retry
	}
	meaningful := false
	for _, r := range results {
		if r.Err != nil {
			return Retry
		}
		if len(strings.TrimSpace(r.Output)) > 10 {
			meaningful = true
		}
	}
	if !meaningful {
		return Retry
	}
	return Accept
}
