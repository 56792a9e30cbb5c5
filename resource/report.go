package resource

import (
	"fmt"
	"strings"

	"github.com/provisio/provisio/id"
)

// Result is the outcome of one compensating action during rollback.
// A nil Err means the resource was undone; otherwise the resource is
// orphaned on the external platform and needs manual cleanup.
type Result struct {
	ID       id.ResourceID
	Kind     Kind
	Identity string
	Err      error
}

// Report aggregates the per-entry outcomes of one rollback pass, in the
// order the actions ran (reverse creation order). Partial rollback is
// never silently incomplete: every entry appears here, succeeded or not.
type Report struct {
	Results []Result
}

// Succeeded returns the results whose compensating action completed.
func (r *Report) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results whose compensating action failed. These
// resources are orphaned and must be cleaned up by hand.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Complete reports whether every compensating action succeeded.
func (r *Report) Complete() bool {
	return len(r.Failed()) == 0
}

// String renders an operator-facing summary: which resources were undone
// and which remain orphaned, with enough identity to locate them manually.
func (r *Report) String() string {
	if len(r.Results) == 0 {
		return "rollback: nothing to undo"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rollback: %d undone, %d orphaned", len(r.Succeeded()), len(r.Failed()))
	for _, res := range r.Results {
		if res.Err == nil {
			fmt.Fprintf(&b, "\n  ok      %s %s", res.Kind, res.Identity)
		} else {
			fmt.Fprintf(&b, "\n  ORPHAN  %s %s: %v", res.Kind, res.Identity, res.Err)
		}
	}
	return b.String()
}
