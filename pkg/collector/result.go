package collector

import (
	"time"

	"github.com/jmylchreest/aptledger/pkg/billing"
)

// Result is the assembled record plus the outcome of each step.
type Result struct {
	Record *billing.Record
	Steps  []StepResult
}

// StepResult records one extraction. Err is nil on success.
type StepResult struct {
	Name     string
	Page     string
	Err      error
	Duration time.Duration
}

// OK reports whether the step succeeded.
func (s StepResult) OK() bool { return s.Err == nil }

// Failed counts failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}
