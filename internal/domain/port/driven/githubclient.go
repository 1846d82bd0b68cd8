// Package driven defines the outbound port interfaces the application
// layer depends on.
package driven

import (
	"context"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
)

// GitHubClient defines the driven port for reading pipeline signals from the
// GitHub API. All methods fetch a single bounded page; the synthesizer never
// needs exhaustive pagination.
type GitHubClient interface {
	// FetchPullRequest returns a snapshot of the PR. A missing PR wraps
	// model.ErrNotFound.
	FetchPullRequest(ctx context.Context, prNumber int) (*model.PullRequest, error)

	// FetchCheckRuns returns up to one page of check runs for the given
	// commit SHA, including rerun duplicates.
	FetchCheckRuns(ctx context.Context, headSHA string) ([]model.CheckRun, error)

	// FetchIssueComments returns a bounded page of PR-level comments,
	// newest first.
	FetchIssueComments(ctx context.Context, prNumber int) ([]model.IssueComment, error)

	// FetchGenerationMetadata reads the per-artifact metadata file from the
	// PR's head branch. A missing branch or file yields
	// model.MetadataUnavailable(), not an error.
	FetchGenerationMetadata(ctx context.Context, branch string) (model.GenerationMetadata, error)

	// FetchDeployments returns a bounded page of deployments for the given
	// ref, newest first.
	FetchDeployments(ctx context.Context, ref string) ([]model.Deployment, error)

	// FetchLatestDeploymentStatus returns the most recent status for a
	// deployment, or nil when none has been reported.
	FetchLatestDeploymentStatus(ctx context.Context, deploymentID int64) (*model.DeploymentStatus, error)
}
