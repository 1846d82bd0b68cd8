package model

import "time"

// CheckRun represents an individual CI check run from the GitHub Checks API.
// Identity key is Name: GitHub reports one entry per run, so reruns of the
// same check appear as multiple entries sharing a name. Only the
// most-recently-timestamped run per name is authoritative.
type CheckRun struct {
	ID          int64
	Name        string
	Status      string // queued, in_progress, completed.
	Conclusion  string // success, failure, neutral, cancelled, skipped, timed_out, action_required.
	Summary     string // Output summary text; scanned for embedded preview URLs.
	DetailsURL  string
	StartedAt   time.Time
	CompletedAt time.Time // Zero if not yet completed.
}

// Completed reports whether the run has finished executing.
func (c CheckRun) Completed() bool {
	return c.Status == "completed"
}

// FailedConclusion reports whether the run concluded with a failing outcome.
// Neutral and skipped conclusions do not count as failures.
func (c CheckRun) FailedConclusion() bool {
	switch c.Conclusion {
	case "failure", "timed_out", "cancelled", "action_required":
		return true
	}
	return false
}

// EffectiveTime is the recency key used to pick the authoritative run among
// rerun duplicates: CompletedAt when the run finished, StartedAt otherwise.
func (c CheckRun) EffectiveTime() time.Time {
	if !c.CompletedAt.IsZero() {
		return c.CompletedAt
	}
	return c.StartedAt
}

// OverallCheckStatus is the aggregated verdict across all retained check runs.
type OverallCheckStatus string

const (
	CheckStatusPending OverallCheckStatus = "pending"
	CheckStatusSuccess OverallCheckStatus = "success"
	CheckStatusFailure OverallCheckStatus = "failure"
	// CheckStatusError marks the ambiguous zero-runs-on-a-closed-PR case.
	CheckStatusError OverallCheckStatus = "error"
)
