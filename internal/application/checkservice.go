// Package application contains the use-case services that turn raw GitHub
// signals into one synthesized pipeline status.
package application

import (
	"sort"
	"strings"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// AggregateCheckRuns collapses rerun duplicates to one authoritative run per
// check name (the one with the most recent completion, or start when not
// completed) and returns the retained runs sorted ascending by StartedAt.
// The result is deterministic regardless of input order: ties on the recency
// key prefer the higher run ID, and ties on StartedAt sort by name.
func AggregateCheckRuns(runs []model.CheckRun) []model.CheckRun {
	latest := make(map[string]model.CheckRun, len(runs))
	for _, run := range runs {
		current, ok := latest[run.Name]
		if !ok {
			latest[run.Name] = run
			continue
		}

		switch {
		case run.EffectiveTime().After(current.EffectiveTime()):
			latest[run.Name] = run
		case run.EffectiveTime().Equal(current.EffectiveTime()) && run.ID > current.ID:
			latest[run.Name] = run
		}
	}

	retained := make([]model.CheckRun, 0, len(latest))
	for _, run := range latest {
		retained = append(retained, run)
	}

	sort.Slice(retained, func(i, j int) bool {
		if !retained[i].StartedAt.Equal(retained[j].StartedAt) {
			return retained[i].StartedAt.Before(retained[j].StartedAt)
		}
		return retained[i].Name < retained[j].Name
	})

	return retained
}

// OverallCheckStatus derives the aggregate verdict from the retained runs.
// Failure wins over pending; zero runs on an open PR means checks have not
// started yet, while zero runs on a closed PR is an ambiguous error state.
func OverallCheckStatus(runs []model.CheckRun, prOpen bool) model.OverallCheckStatus {
	var hasFailure, hasPending bool
	for _, run := range runs {
		if run.FailedConclusion() {
			hasFailure = true
		}
		if !run.Completed() {
			hasPending = true
		}
	}

	switch {
	case hasFailure:
		return model.CheckStatusFailure
	case len(runs) == 0 && prOpen:
		return model.CheckStatusPending
	case len(runs) == 0:
		return model.CheckStatusError
	case hasPending:
		return model.CheckStatusPending
	default:
		return model.CheckStatusSuccess
	}
}

// IsVerificationCheck reports whether a check name belongs to the
// verification workflow.
func IsVerificationCheck(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "vpr") || strings.Contains(lower, "validate")
}
