// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

// Page bounds per upstream read. The synthesizer works on recent signals
// only, so a single page of each is sufficient.
const (
	checkRunsPerPage   = 50
	commentsPerPage    = 15
	deploymentsPerPage = 10
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port for a single repository.
type Client struct {
	gh           *gh.Client
	owner        string
	repo         string
	metadataPath string // Template with %s for the branch artifact slug.
}

// installationTransport injects a fresh installation token into every request.
// Tokens rotate hourly, so the Authorization header cannot be baked into the
// client at construction time.
type installationTransport struct {
	base   http.RoundTripper
	tokens *TokenSource
}

func (t *installationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, err
	}

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(r)
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. installation token injection (re-minted near expiry)
//  2. httpcache (ETag-based conditional request caching)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
func NewClient(tokens *TokenSource, owner, repo, metadataPath string) *Client {
	transport := &installationTransport{
		base:   httpcache.NewMemoryCacheTransport(),
		tokens: tokens,
	}
	httpClient := github_ratelimit.NewClient(transport)

	return &Client{
		gh:           gh.NewClient(httpClient),
		owner:        owner,
		repo:         repo,
		metadataPath: metadataPath,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, owner, repo, metadataPath string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:           client,
		owner:        owner,
		repo:         repo,
		metadataPath: metadataPath,
	}, nil
}

// FetchPullRequest retrieves a snapshot of the given pull request.
func (c *Client) FetchPullRequest(ctx context.Context, prNumber int) (*model.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, prNumber)
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("fetching PR #%d", prNumber))
	}

	logRateLimit(resp, "pull-request", 1)

	return mapPullRequest(pr), nil
}

// FetchCheckRuns retrieves a single page of check runs for the given commit,
// including rerun duplicates. Deduplication is the aggregator's job.
func (c *Client) FetchCheckRuns(ctx context.Context, headSHA string) ([]model.CheckRun, error) {
	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: checkRunsPerPage},
	}

	result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, headSHA, opts)
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("listing check runs for %s", headSHA))
	}

	logRateLimit(resp, "check-runs", len(result.CheckRuns))

	runs := make([]model.CheckRun, 0, len(result.CheckRuns))
	for _, cr := range result.CheckRuns {
		runs = append(runs, mapCheckRun(cr))
	}

	return runs, nil
}

// FetchIssueComments retrieves a bounded page of PR-level comments sorted
// newest first.
func (c *Client) FetchIssueComments(ctx context.Context, prNumber int) ([]model.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.Ptr("created"),
		Direction:   gh.Ptr("desc"),
		ListOptions: gh.ListOptions{PerPage: commentsPerPage},
	}

	comments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, prNumber, opts)
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("listing comments for #%d", prNumber))
	}

	logRateLimit(resp, "issue-comments", len(comments))

	mapped := make([]model.IssueComment, 0, len(comments))
	for _, comment := range comments {
		mapped = append(mapped, mapIssueComment(comment))
	}

	return mapped, nil
}

// FetchGenerationMetadata reads the per-artifact metadata file from the head
// branch. A 404 on the branch or the file resolves to MetadataUnavailable,
// not an error.
func (c *Client) FetchGenerationMetadata(ctx context.Context, branch string) (model.GenerationMetadata, error) {
	path := fmt.Sprintf(c.metadataPath, branchArtifactSlug(branch))

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, &gh.RepositoryContentGetOptions{
		Ref: branch,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return model.MetadataUnavailable(), nil
		}
		return model.GenerationMetadata{}, wrapAPIError(resp, err, fmt.Sprintf("fetching metadata %s@%s", path, branch))
	}

	logRateLimit(resp, "metadata", 1)

	if file == nil {
		// Path resolved to a directory; treat the same as a missing file.
		return model.MetadataUnavailable(), nil
	}

	content, err := file.GetContent()
	if err != nil {
		return model.GenerationMetadata{}, fmt.Errorf("decoding metadata %s@%s: %w", path, branch, err)
	}

	return parseGenerationMetadata([]byte(content))
}

// FetchDeployments retrieves a bounded page of deployments for the given ref.
func (c *Client) FetchDeployments(ctx context.Context, ref string) ([]model.Deployment, error) {
	opts := &gh.DeploymentsListOptions{
		Ref:         ref,
		ListOptions: gh.ListOptions{PerPage: deploymentsPerPage},
	}

	deployments, resp, err := c.gh.Repositories.ListDeployments(ctx, c.owner, c.repo, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, wrapAPIError(resp, err, fmt.Sprintf("listing deployments for %s", ref))
	}

	logRateLimit(resp, "deployments", len(deployments))

	mapped := make([]model.Deployment, 0, len(deployments))
	for _, d := range deployments {
		mapped = append(mapped, model.Deployment{
			ID:          d.GetID(),
			Environment: d.GetEnvironment(),
			Ref:         d.GetRef(),
			CreatedAt:   d.GetCreatedAt().Time,
		})
	}

	return mapped, nil
}

// FetchLatestDeploymentStatus returns the most recent status reported for a
// deployment, or nil when the deployment has no statuses yet.
func (c *Client) FetchLatestDeploymentStatus(ctx context.Context, deploymentID int64) (*model.DeploymentStatus, error) {
	statuses, resp, err := c.gh.Repositories.ListDeploymentStatuses(ctx, c.owner, c.repo, deploymentID, &gh.ListOptions{PerPage: 1})
	if err != nil {
		return nil, wrapAPIError(resp, err, fmt.Sprintf("listing statuses for deployment %d", deploymentID))
	}

	logRateLimit(resp, "deployment-statuses", len(statuses))

	if len(statuses) == 0 {
		return nil, nil
	}

	return &model.DeploymentStatus{
		State:          statuses[0].GetState(),
		EnvironmentURL: statuses[0].GetEnvironmentURL(),
	}, nil
}

// mapPullRequest converts a go-github PullRequest to a domain snapshot.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) *model.PullRequest {
	state := model.PRStateOpen
	if pr.GetState() == "closed" {
		state = model.PRStateClosed
	}

	return &model.PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		State:      state,
		IsMerged:   pr.GetMerged(),
		URL:        pr.GetHTMLURL(),
		Author:     pr.GetUser().GetLogin(),
		HeadSHA:    pr.GetHead().GetSHA(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		UpdatedAt:  pr.GetUpdatedAt().Time,
	}
}

// mapCheckRun converts a go-github CheckRun to a domain model CheckRun.
func mapCheckRun(cr *gh.CheckRun) model.CheckRun {
	var startedAt, completedAt time.Time
	if cr.StartedAt != nil {
		startedAt = cr.GetStartedAt().Time
	}
	if cr.CompletedAt != nil {
		completedAt = cr.GetCompletedAt().Time
	}

	return model.CheckRun{
		ID:          cr.GetID(),
		Name:        cr.GetName(),
		Status:      cr.GetStatus(),
		Conclusion:  cr.GetConclusion(),
		Summary:     cr.GetOutput().GetSummary(),
		DetailsURL:  cr.GetDetailsURL(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

// mapIssueComment converts a go-github IssueComment to a domain model comment.
func mapIssueComment(c *gh.IssueComment) model.IssueComment {
	return model.IssueComment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		URL:       c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

// parseGenerationMetadata decodes the metadata file. Keys missing from the
// file map to absent (dependencies) or false (lint fixes, which the tooling
// only writes after an attempt).
func parseGenerationMetadata(raw []byte) (model.GenerationMetadata, error) {
	var parsed struct {
		DependenciesFulfilled *bool `json:"dependenciesFulfilled"`
		LintFixesAttempted    *bool `json:"lintFixesAttempted"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return model.GenerationMetadata{}, fmt.Errorf("parsing metadata file: %w", err)
	}

	meta := model.GenerationMetadata{
		DependenciesFulfilled: model.TriStateAbsent,
		LintFixesAttempted:    model.TriStateFalse,
	}
	if parsed.DependenciesFulfilled != nil {
		meta.DependenciesFulfilled = triState(*parsed.DependenciesFulfilled)
	}
	if parsed.LintFixesAttempted != nil {
		meta.LintFixesAttempted = triState(*parsed.LintFixesAttempted)
	}

	return meta, nil
}

func triState(v bool) model.TriState {
	if v {
		return model.TriStateTrue
	}
	return model.TriStateFalse
}

// branchArtifactSlug extracts the artifact identifier from a generated head
// branch name: the segment after the final slash, e.g.
// "feature/gen-case-converter" -> "gen-case-converter".
func branchArtifactSlug(branch string) string {
	if idx := strings.LastIndex(branch, "/"); idx >= 0 {
		return branch[idx+1:]
	}
	return branch
}

// wrapAPIError maps upstream HTTP status codes to the domain sentinel errors
// the handler layer distinguishes. Everything else is a transient upstream
// failure, wrapped with context and not retried here.
func wrapAPIError(resp *gh.Response, err error, what string) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", what, model.ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", what, model.ErrUnauthenticated)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", what, model.ErrPermission)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
