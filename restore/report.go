package restore

import (
	"fmt"

	"github.com/samber/lo"
)

// ItemFailure is an item that could not be restored.
type ItemFailure struct {
	Index int
	Title string
	// Err is a *errors.RestoreItemError.
	Err error
}

// Report is the outcome of one restore run. Indexes refer to positions in the
// restored schema's Items.
type Report struct {
	TargetFormID string
	// Created is true when the target form was created by this run.
	Created   bool
	Succeeded []int
	Failed    []ItemFailure
	Skipped   []int
	Warnings  []string
	// Interrupted is true when the run was cancelled before every item was processed.
	Interrupted bool
}

// Partial reports whether some items failed. A partial restore is still a
// completed run.
func (r Report) Partial() bool {
	return len(r.Failed) > 0
}

// FailedIndexes returns the indexes of failed items in restore order.
func (r Report) FailedIndexes() []int {
	return lo.Map(r.Failed, func(f ItemFailure, _ int) int { return f.Index })
}

func (r Report) String() string {
	s := fmt.Sprintf("target %s: %d succeeded, %d failed, %d skipped",
		r.TargetFormID, len(r.Succeeded), len(r.Failed), len(r.Skipped))
	if r.Interrupted {
		s += " (interrupted)"
	}
	return s
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
