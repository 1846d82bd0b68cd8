package application

import (
	"context"
	"regexp"
	"strings"

	"github.com/ericfisherdev/checkpilot/internal/domain/model"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

// URL extraction patterns. Preview URLs are recognized by the deploy-preview
// host convention; screenshots by image file extensions.
var (
	previewURLPattern    = regexp.MustCompile(`https?://deploy-preview-\d+--[^\s<>()\[\]"']+|https?://[^\s<>()\[\]"']*deploy-preview[^\s<>()\[\]"']*`)
	screenshotURLPattern = regexp.MustCompile(`https?://[^\s<>()\[\]"']+\.(?:png|jpe?g|gif|webp)`)
)

// DeployService locates the preview-deployment URL for a head commit.
// Resolution order: checks-reported URLs, then comment-embedded URLs, then
// the Deployments API; the first hit wins and later steps are skipped.
type DeployService struct {
	gh         driven.GitHubClient
	previewBot string
}

// NewDeployService creates a DeployService. previewBot is the login of the
// deploy-preview integration's comment account.
func NewDeployService(gh driven.GitHubClient, previewBot string) *DeployService {
	return &DeployService{
		gh:         gh,
		previewBot: normalizeLogin(previewBot),
	}
}

// Resolve finds the preview deployment for the head commit, or a zero value
// when no signal yields a URL. checks must already be deduplicated; comments
// arrive newest first. The Deployments API is only consulted when the cheap
// signals found nothing.
func (s *DeployService) Resolve(ctx context.Context, checks []model.CheckRun, comments []model.IssueComment, headRef string) (model.PreviewDeployment, error) {
	if preview, ok := previewFromChecks(checks); ok {
		return preview, nil
	}

	if preview, ok := s.previewFromComments(comments); ok {
		return preview, nil
	}

	return s.previewFromDeployments(ctx, headRef)
}

// previewFromChecks scans successful preview-integration check runs for an
// embedded URL in their summary text.
func previewFromChecks(checks []model.CheckRun) (model.PreviewDeployment, bool) {
	for _, check := range checks {
		if !isPreviewCheckName(check.Name) || check.Conclusion != "success" {
			continue
		}
		if url := previewURLPattern.FindString(check.Summary); url != "" {
			return model.PreviewDeployment{
				URL:       url,
				Succeeded: true,
				Source:    model.PreviewSourceCheck,
			}, true
		}
	}
	return model.PreviewDeployment{}, false
}

// previewFromComments scans comments for an embedded preview URL, preferring
// the deploy-preview bot's own comments over everything else. A screenshot
// image URL in the same comment is carried as a secondary artifact.
func (s *DeployService) previewFromComments(comments []model.IssueComment) (model.PreviewDeployment, bool) {
	ordered := make([]model.IssueComment, 0, len(comments))
	var rest []model.IssueComment
	for _, c := range comments {
		if normalizeLogin(c.Author) == s.previewBot {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	ordered = append(ordered, rest...)

	for _, comment := range ordered {
		url := previewURLPattern.FindString(comment.Body)
		if url == "" {
			continue
		}

		// Presence of a validated URL counts as deploy-success evidence
		// even without a corroborating check run.
		return model.PreviewDeployment{
			URL:           url,
			ScreenshotURL: screenshotURLPattern.FindString(comment.Body),
			Succeeded:     true,
			Source:        model.PreviewSourceComment,
		}, true
	}

	return model.PreviewDeployment{}, false
}

// previewFromDeployments falls back to the Deployments API: the most recent
// preview-environment deployment with a successful status and a reported
// environment URL.
func (s *DeployService) previewFromDeployments(ctx context.Context, headRef string) (model.PreviewDeployment, error) {
	deployments, err := s.gh.FetchDeployments(ctx, headRef)
	if err != nil {
		return model.PreviewDeployment{}, err
	}

	for _, d := range deployments {
		if !isPreviewEnvironment(d.Environment) {
			continue
		}

		status, err := s.gh.FetchLatestDeploymentStatus(ctx, d.ID)
		if err != nil {
			return model.PreviewDeployment{}, err
		}
		if status == nil || status.State != "success" || status.EnvironmentURL == "" {
			continue
		}

		return model.PreviewDeployment{
			URL:       status.EnvironmentURL,
			Succeeded: true,
			Source:    model.PreviewSourceDeployment,
		}, nil
	}

	return model.PreviewDeployment{}, nil
}

// isPreviewCheckName reports whether a check run belongs to a preview-deploy
// integration.
func isPreviewCheckName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "netlify") ||
		strings.Contains(lower, "deploy-preview") ||
		strings.Contains(lower, "preview")
}

// isPreviewEnvironment reports whether a deployment environment name suggests
// a PR preview.
func isPreviewEnvironment(env string) bool {
	lower := strings.ToLower(env)
	return strings.Contains(lower, "preview") || strings.Contains(lower, "pull request")
}
